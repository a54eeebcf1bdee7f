package middleware

import (
	"github.com/OFFIS-RIT/listenkg/internal/storage"
	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/store"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

// App holds what the handlers share. Store, Queue and Artifacts are nil
// when the server runs without a database, broker or bucket.
type App struct {
	DataPath  string
	Cache     *cache.Manager
	Store     store.GraphStorage
	Queue     *amqp091.Channel
	Artifacts *storage.ArtifactStore
	APIKey    string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
