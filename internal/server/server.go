package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/internal/queue"
	mid "github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/internal/storage"
	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/store/migrations"
	pgs "github.com/OFFIS-RIT/listenkg/pkg/store/pgx"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho builds the router around app.
func NewEcho(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	if app.Cache == nil {
		app.Cache = cache.NewManager()
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

// Init serves the datasets under cfg.DataPath until SIGINT or SIGTERM.
// The database, broker and bucket are used when their settings validate
// and skipped otherwise.
func Init(cfg *config.Config) {
	if err := cfg.ValidateFor(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &mid.App{
		DataPath: cfg.DataPath,
		Cache:    cache.NewManager(),
		APIKey:   cfg.APIKey,
	}

	if cfg.ValidateFor(config.GroupDatabase) == nil {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
		conn, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer conn.Close()
		app.Store = pgs.NewGraphDBStorageWithConnection(conn)
	} else {
		logger.Warn("[Server] No database configured, serving local files only")
	}

	if cfg.ValidateFor(config.GroupQueue) == nil {
		que, err := queue.Init(cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to connect to queue", "err", err)
		}
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to setup queues", "err", err)
		}
		app.Queue = ch
	} else {
		logger.Warn("[Server] No queue configured, job routes are disabled")
	}

	if cfg.ValidateFor(config.GroupS3) == nil {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		app.Artifacts = storage.NewArtifactStore(client, cfg.S3.Bucket, cfg.S3.Prefix)
	}

	e := NewEcho(app)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
