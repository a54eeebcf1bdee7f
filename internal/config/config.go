// Package config collects the environment settings shared by the CLI, the
// worker and the inspection server.
package config

import (
	"fmt"

	"github.com/OFFIS-RIT/listenkg/internal/util"

	"github.com/go-playground/validator"
)

// Config mirrors the environment. Only the fields a binary actually uses
// need to be set; ValidateFor checks the groups it asks for.
type Config struct {
	DataPath    string
	RawDataPath string
	Dataset     string

	Seed          uint64
	ParallelUsers int
	MinCoListens  int
	Debug         bool

	Port   string
	APIKey string

	S3       S3
	Database Database
	Queue    Queue
}

type S3 struct {
	Region    string `validate:"required"`
	Endpoint  string `validate:"omitempty,url"`
	AccessKey string `validate:"required"`
	SecretKey string `validate:"required"`
	Bucket    string `validate:"required"`
	Prefix    string
}

type Database struct {
	URL string `validate:"required"`
}

type Queue struct {
	User     string `validate:"required"`
	Password string `validate:"required"`
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
}

// Load reads the configuration from the environment (and .env, if
// present). Defaults follow the local development layout.
func Load() *Config {
	util.LoadEnv()
	return &Config{
		DataPath:      util.GetEnvString("DATA_PATH", "final_data"),
		RawDataPath:   util.GetEnvString("RAW_DATA_PATH", "rawdata"),
		Dataset:       util.GetEnvString("DATASET", "music"),
		Seed:          util.GetEnvUint("SEED", 555),
		ParallelUsers: util.GetEnvInt("PARALLEL_USERS", 1),
		MinCoListens:  util.GetEnvInt("MIN_CO_LISTENS", 2),
		Debug:         util.GetEnvBool("DEBUG", false),
		Port:          util.GetEnvString("PORT", "8080"),
		APIKey:        util.GetEnv("API_KEY"),
		S3: S3{
			Region:    util.GetEnv("AWS_REGION"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
			Prefix:    util.GetEnvString("AWS_PREFIX", "datasets"),
		},
		Database: Database{
			URL: util.GetEnv("DATABASE_URL"),
		},
		Queue: Queue{
			User:     util.GetEnv("RABBITMQ_USER"),
			Password: util.GetEnv("RABBITMQ_PASSWORD"),
			Host:     util.GetEnv("RABBITMQ_HOST"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
	}
}

// Group names an optional settings block.
type Group int

const (
	GroupS3 Group = iota
	GroupDatabase
	GroupQueue
)

// ValidateFor validates the core settings plus the requested groups.
func (c *Config) ValidateFor(groups ...Group) error {
	v := validator.New()

	core := struct {
		DataPath      string `validate:"required"`
		RawDataPath   string `validate:"required"`
		Dataset       string `validate:"required"`
		ParallelUsers int    `validate:"min=1,max=256"`
		MinCoListens  int    `validate:"min=1"`
		Port          string `validate:"omitempty,numeric"`
	}{c.DataPath, c.RawDataPath, c.Dataset, c.ParallelUsers, c.MinCoListens, c.Port}
	if err := v.Struct(core); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, g := range groups {
		var err error
		switch g {
		case GroupS3:
			err = v.Struct(c.S3)
		case GroupDatabase:
			err = v.Struct(c.Database)
		case GroupQueue:
			err = v.Struct(c.Queue)
		}
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// AMQPURL is the RabbitMQ connection string.
func (q Queue) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}
