package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/dataset"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"github.com/labstack/echo/v4"
)

type neighbor struct {
	Head     int    `json:"head"`
	Relation string `json:"relation"`
	Tail     int    `json:"tail"`
	Weight   int    `json:"weight"`
}

// GetNeighborsHandler returns the outgoing edges of an entity. The graph
// store answers when configured; otherwise the local dataset is loaded.
func GetNeighborsHandler(c echo.Context) error {
	type neighborsParams struct {
		Name     string `param:"name" validate:"required,alphanumunicode"`
		EntityID int    `param:"id" validate:"min=0"`
		Relation string `query:"relation" validate:"omitempty,oneof=listened_to listened_by similar_to similar_from"`
		Limit    int    `query:"limit" validate:"min=0,max=10000"`
		UseSmall bool   `query:"small"`
	}

	data := new(neighborsParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	var relation *common.Relation
	if data.Relation != "" {
		r, err := common.ParseRelation(data.Relation)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		relation = &r
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	var triples []common.Triple
	if app.Store != nil && !data.UseSmall {
		res, err := app.Store.Neighbors(ctx, data.Name, data.EntityID, relation, data.Limit)
		if err != nil {
			logger.Error("[Server] Failed to query neighbors", "dataset", data.Name, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		triples = res
	} else {
		ds := dataset.New(dataset.NewDatasetParams{
			Root:     app.DataPath,
			Name:     data.Name,
			UseSmall: data.UseSmall,
			Cache:    app.Cache,
		})
		kg, err := ds.LoadKG(ctx)
		if err != nil {
			return loadError(c, err)
		}
		for _, e := range kg.Adjacency[data.EntityID] {
			if relation != nil && e.Relation != *relation {
				continue
			}
			triples = append(triples, common.Triple{Head: data.EntityID, Relation: e.Relation, Tail: e.Tail, Weight: e.Weight})
			if data.Limit > 0 && len(triples) == data.Limit {
				break
			}
		}
	}

	out := make([]neighbor, 0, len(triples))
	for _, t := range triples {
		out = append(out, neighbor{Head: t.Head, Relation: t.Relation.String(), Tail: t.Tail, Weight: t.Weight})
	}
	return c.JSON(http.StatusOK, out)
}

// GetUserHistoryHandler returns the artist indices a user rated positively.
func GetUserHistoryHandler(c echo.Context) error {
	type historyParams struct {
		Name     string `param:"name" validate:"required,alphanumunicode"`
		UserID   int    `param:"id" validate:"min=0"`
		UseSmall bool   `query:"small"`
	}
	type historyResponse struct {
		User    int   `json:"user"`
		Artists []int `json:"artists"`
	}

	data := new(historyParams)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ds := dataset.New(dataset.NewDatasetParams{
		Root:     app.DataPath,
		Name:     data.Name,
		UseSmall: data.UseSmall,
		Cache:    app.Cache,
	})
	ratings, _, err := ds.LoadRatings(c.Request().Context())
	if err != nil {
		return loadError(c, err)
	}

	artists, ok := dataset.UserHistory(ratings)[data.UserID]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User has no history"})
	}
	return c.JSON(http.StatusOK, historyResponse{User: data.UserID, Artists: artists})
}
