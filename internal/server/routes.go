package server

import (
	"github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Dataset inspection routes
	apiRoutes.GET("/datasets", routes.GetDatasetsHandler)
	apiRoutes.GET("/datasets/:name/metadata", routes.GetDatasetMetadataHandler)
	apiRoutes.GET("/datasets/:name/stats", routes.GetDatasetStatsHandler)
	apiRoutes.GET("/datasets/:name/verify", routes.VerifyDatasetHandler)

	// Graph routes
	apiRoutes.GET("/datasets/:name/entities/:id/neighbors", routes.GetNeighborsHandler)
	apiRoutes.GET("/datasets/:name/users/:id/history", routes.GetUserHistoryHandler)

	// Job routes
	apiRoutes.POST("/datasets/:name/rebuild", routes.RebuildDatasetHandler, middleware.AuthMiddleware)
	apiRoutes.DELETE("/datasets/:name", routes.DeleteDatasetHandler, middleware.AuthMiddleware)

	// Artifact routes
	apiRoutes.GET("/datasets/:name/artifacts/:file/link", routes.GetArtifactLinkHandler, middleware.AuthMiddleware)
}
