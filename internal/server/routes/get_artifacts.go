package routes

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetArtifactLinkHandler returns a presigned download link for one
// published file of a dataset.
func GetArtifactLinkHandler(c echo.Context) error {
	type artifactParams struct {
		Name string `param:"name" validate:"required,alphanumunicode"`
		File string `param:"file" validate:"required,oneof=ratings_final.txt kg_final.txt dataset_metadata.txt"`
	}

	data := new(artifactParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	artifacts := c.(*middleware.AppContext).App.Artifacts
	if artifacts == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Artifact storage not configured"})
	}

	link, err := artifacts.DownloadLink(c.Request().Context(), data.Name, data.File, 15*time.Minute)
	if err != nil {
		logger.Error("[Server] Failed to presign artifact", "dataset", data.Name, "file", data.File, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"url": link})
}
