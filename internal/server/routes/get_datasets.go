package routes

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/OFFIS-RIT/listenkg/internal/server/middleware"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/dataset"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"github.com/labstack/echo/v4"
)

type datasetParams struct {
	Name     string `param:"name" validate:"required,alphanumunicode"`
	UseSmall bool   `query:"small"`
}

func bindDataset(c echo.Context) (*dataset.Dataset, error) {
	data := new(datasetParams)
	if err := c.Bind(data); err != nil {
		return nil, err
	}
	if err := c.Validate(data); err != nil {
		return nil, err
	}
	app := c.(*middleware.AppContext).App
	return dataset.New(dataset.NewDatasetParams{
		Root:     app.DataPath,
		Name:     data.Name,
		UseSmall: data.UseSmall,
		Cache:    app.Cache,
	}), nil
}

// loadError maps a dataset load failure to a response.
func loadError(c echo.Context, err error) error {
	if errors.Is(err, loader.ErrMissingSource) || errors.Is(err, os.ErrNotExist) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Dataset not found"})
	}
	logger.Error("[Server] Failed to load dataset", "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// GetDatasetsHandler lists the exported datasets when a graph store is
// configured and the preprocessed directories under the data path
// otherwise.
func GetDatasetsHandler(c echo.Context) error {
	type localDataset struct {
		Name string `json:"name"`
	}

	app := c.(*middleware.AppContext).App
	if app.Store != nil {
		infos, err := app.Store.Datasets(c.Request().Context())
		if err != nil {
			logger.Error("[Server] Failed to list datasets", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		return c.JSON(http.StatusOK, infos)
	}

	entries, err := os.ReadDir(app.DataPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	out := []localDataset{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		kg := filepath.Join(app.DataPath, e.Name(), common.KGFileBase+common.TextExt)
		if _, err := os.Stat(kg); err == nil {
			out = append(out, localDataset{Name: e.Name()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return c.JSON(http.StatusOK, out)
}

func GetDatasetMetadataHandler(c echo.Context) error {
	type metadataEntry struct {
		Key   string `json:"key"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}

	ds, err := bindDataset(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	meta, err := ds.Metadata()
	if err != nil {
		return loadError(c, err)
	}
	if meta == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Dataset has no metadata"})
	}

	out := make([]metadataEntry, 0, meta.Len())
	for _, e := range meta.Entries() {
		out = append(out, metadataEntry{
			Key:   string(e.Key),
			Kind:  e.Value.Kind().String(),
			Value: e.Value.String(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func GetDatasetStatsHandler(c echo.Context) error {
	type statsResponse struct {
		Dataset     string              `json:"dataset"`
		Annotations dataset.Annotations `json:"annotations"`
		Stats       graph.Stats         `json:"stats"`
		Triples     int                 `json:"triples"`
		Cache       string              `json:"cache"`
		Filtered    bool                `json:"filtered"`
	}

	ds, err := bindDataset(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	kg, err := ds.LoadKG(c.Request().Context())
	if err != nil {
		return loadError(c, err)
	}

	return c.JSON(http.StatusOK, statsResponse{
		Dataset:     ds.Name(),
		Annotations: kg.Annotations,
		Stats:       graph.ComputeStats(kg.Adjacency),
		Triples:     kg.Triples.Rows(),
		Cache:       kg.CacheState.String(),
		Filtered:    kg.Metadata.Filtered(),
	})
}

// VerifyDatasetHandler reports the integrity of the text files. A
// mismatch is a normal 200 response with all_valid unset.
func VerifyDatasetHandler(c echo.Context) error {
	ds, err := bindDataset(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	report, err := ds.Verify(c.Request().Context())
	if err != nil {
		return loadError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
