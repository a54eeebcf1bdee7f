package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/internal/queue"
	"github.com/OFFIS-RIT/listenkg/internal/storage"
	"github.com/OFFIS-RIT/listenkg/internal/timing"
	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/leaselock"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/logger/console"
	"github.com/OFFIS-RIT/listenkg/pkg/store/migrations"
	pgs "github.com/OFFIS-RIT/listenkg/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
	})
	logger.Init(consoleLogger)

	if err := cfg.ValidateFor(config.GroupDatabase, config.GroupQueue); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	// Init pgx client
	if err := migrations.Up(cfg.Database.URL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init rabbitmq
	conn, err := queue.Init(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	handler := &queue.Handler{
		DataPath:    cfg.DataPath,
		RawDataPath: cfg.RawDataPath,
		Seed:        cfg.Seed,
		Parallel:    cfg.ParallelUsers,
		MinCo:       cfg.MinCoListens,
		Cache:       cache.NewManager(),
		Locker:      leaselock.New(pgConn),
		Store:       pgs.NewGraphDBStorageWithConnection(pgConn),
		Notify: func(topic string, body []byte) error {
			return queue.PublishTopic(ch, topic, body)
		},
	}

	// Init s3 client; publishing is skipped without a bucket
	if cfg.ValidateFor(config.GroupS3) == nil {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		handler.Publisher = storage.NewArtifactStore(client, cfg.S3.Bucket, cfg.S3.Prefix)
	} else {
		logger.Warn("No S3 bucket configured, artifacts will not be published")
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				done := timing.Track("Processing time", "queue", qm.queueName)
				logger.Info("Received message", "queue", qm.queueName)

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if err := handler.Handle(ctx, qm.queueName, qm.msg.Body); err != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", err)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				done()
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
