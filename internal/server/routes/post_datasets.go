package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/listenkg/internal/queue"
	"github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"github.com/labstack/echo/v4"
)

type jobResponse struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RebuildDatasetHandler enqueues a rebuild of one dataset. The body is
// optional and carries the reduction settings.
func RebuildDatasetHandler(c echo.Context) error {
	type rebuildData struct {
		Name       string `param:"name" validate:"required,alphanumunicode"`
		Reduce     bool   `json:"reduce"`
		MaxUsers   int    `json:"max_users" validate:"min=0"`
		MaxArtists int    `json:"max_artists" validate:"min=0"`
		Seed       uint64 `json:"seed"`
	}

	data := new(rebuildData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{Message: "Invalid request params"})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if ch == nil {
		return c.JSON(http.StatusServiceUnavailable, jobResponse{Message: "Queue not configured"})
	}

	msg := queue.RebuildMsg{
		Dataset:       data.Name,
		Reduce:        data.Reduce,
		MaxUsers:      data.MaxUsers,
		MaxArtists:    data.MaxArtists,
		Seed:          data.Seed,
		CorrelationID: queue.NewCorrelationID(),
	}
	body, err := queue.EncodeRebuild(msg)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{Message: err.Error()})
	}
	if err := queue.PublishFIFO(ch, queue.RebuildQueue, body); err != nil {
		logger.Error("[Server] Failed to enqueue rebuild", "dataset", data.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, jobResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, jobResponse{Message: "Rebuild queued", CorrelationID: msg.CorrelationID})
}

// DeleteDatasetHandler enqueues removal of the exported graph.
func DeleteDatasetHandler(c echo.Context) error {
	type deleteData struct {
		Name string `param:"name" validate:"required,alphanumunicode"`
	}

	data := new(deleteData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, jobResponse{Message: "Invalid request params"})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if ch == nil {
		return c.JSON(http.StatusServiceUnavailable, jobResponse{Message: "Queue not configured"})
	}

	msg := queue.DeleteMsg{Dataset: data.Name, CorrelationID: queue.NewCorrelationID()}
	body, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, jobResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(ch, queue.DeleteQueue, body); err != nil {
		logger.Error("[Server] Failed to enqueue delete", "dataset", data.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, jobResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, jobResponse{Message: "Delete queued", CorrelationID: msg.CorrelationID})
}
