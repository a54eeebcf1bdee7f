package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/integrity"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
)

// ProcessParams selects the input and output directories of one run.
// With Reduce set, the raw interaction file is first filtered in place to
// the MaxUsers most active users and MaxArtists most listened artists.
type ProcessParams struct {
	RawPath    string
	OutputPath string
	Reduce     bool
	MaxUsers   int
	MaxArtists int
}

// ProcessResult summarizes a finished run.
type ProcessResult struct {
	KGPath       string
	RatingsPath  string
	MetadataPath string
	Metadata     *metadata.Metadata

	NumArtists   int
	NumUsers     int
	Triples      int
	Similarities int
	Threshold    float64
}

// ProcessDataset runs the whole pipeline: optional filtering, entity
// indexing, labeling with negative sampling, co-listening similarity,
// triple emission and metadata with file digests. Caches of a previous
// run in OutputPath are removed. A missing catalog or interaction file
// aborts the run with loader.ErrMissingSource.
func (g *GraphClient) ProcessDataset(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	var selection *Selection
	reduce := params.Reduce
	if reduce {
		sel, err := FilterRaw(params.RawPath, params.MaxUsers, params.MaxArtists)
		if err != nil {
			return nil, fmt.Errorf("failed to filter raw data: %w", err)
		}
		if sel == nil {
			reduce = false
		}
		selection = sel
	}

	catalog, stats, err := loader.ReadCatalog(filepath.Join(params.RawPath, common.CatalogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if stats.Skipped > 0 {
		logger.Warn("[Ingest] Skipped malformed catalog lines", "skipped", stats.Skipped)
	}

	idx := NewEntityIndexer()
	if err := idx.IndexArtists(catalog, selection); err != nil {
		return nil, err
	}
	logger.Info("[Ingest] Artists indexed", "artists", idx.NumArtists())

	rows, _, stats, err := loader.ReadInteractions(filepath.Join(params.RawPath, common.InteractionsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	if stats.Skipped > 0 {
		logger.Warn("[Ingest] Skipped malformed interaction lines", "skipped", stats.Skipped)
	}

	ingest := Ingest(idx, rows, selection, NewRand(g.seed))
	logger.Info("[Ingest] Ratings labeled",
		"users", idx.NumUsers(), "threshold", ingest.Threshold,
		"positives", ingest.Positives, "negatives", ingest.Negatives,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counter := CoListenCounter{MinCoListens: g.minCoListens, Workers: g.parallel}
	similar, err := counter.Similarities(ctx, ingest.Listening)
	if err != nil {
		return nil, fmt.Errorf("failed to compute similarities: %w", err)
	}

	triples := BuildTriples(idx.NumArtists(), ingest.Listens, similar)
	logger.Info("[Graph] Triples built",
		"listened", 2*len(ingest.Listens), "similar", 2*len(similar), "total", len(triples),
	)

	if err := os.MkdirAll(params.OutputPath, 0o755); err != nil {
		return nil, err
	}

	res := &ProcessResult{
		KGPath:       filepath.Join(params.OutputPath, common.KGFileBase+common.TextExt),
		RatingsPath:  filepath.Join(params.OutputPath, common.RatingsFileBase+common.TextExt),
		MetadataPath: filepath.Join(params.OutputPath, metadata.FileName),
		NumArtists:   idx.NumArtists(),
		NumUsers:     idx.NumUsers(),
		Triples:      len(triples),
		Similarities: len(similar),
		Threshold:    ingest.Threshold,
	}

	if err := loader.WriteMatrix(res.RatingsPath, common.RatingsToMatrix(ingest.Ratings)); err != nil {
		return nil, fmt.Errorf("failed to write ratings: %w", err)
	}
	if err := loader.WriteMatrix(res.KGPath, common.TriplesToMatrix(triples)); err != nil {
		return nil, fmt.Errorf("failed to write kg: %w", err)
	}

	cache.Invalidate(cache.Entry{
		CachePath:  filepath.Join(params.OutputPath, common.KGFileBase+common.CacheExt),
		Dependents: []string{filepath.Join(params.OutputPath, common.RatingsFileBase+common.CacheExt)},
	})

	kgHash, err := integrity.HashFile(res.KGPath)
	if err != nil {
		return nil, err
	}
	ratingsHash, err := integrity.HashFile(res.RatingsPath)
	if err != nil {
		return nil, err
	}

	meta := metadata.New()
	meta.Set(metadata.KeyFiltered, metadata.Bool(reduce))
	if reduce {
		meta.Set(metadata.KeyMaxUsersRequested, metadata.Int(int64(params.MaxUsers)))
		meta.Set(metadata.KeyMaxArtistsRequested, metadata.Int(int64(params.MaxArtists)))
	}
	meta.Set(metadata.KeyUsersActual, metadata.Int(int64(idx.NumUsers())))
	meta.Set(metadata.KeyArtistsActual, metadata.Int(int64(idx.NumArtists())))
	meta.Set(metadata.KeyEntities, metadata.Int(int64(idx.NumEntities())))
	meta.Set(metadata.KeyRelations, metadata.Int(common.RelationCount))
	meta.Set(metadata.KeyKGTriples, metadata.Int(int64(len(triples))))
	meta.Set(metadata.KeyKGFileHash, metadata.String(kgHash))
	meta.Set(metadata.KeyRatingsFileHash, metadata.String(ratingsHash))

	if err := meta.Save(res.MetadataPath); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	res.Metadata = meta

	logger.Info("[Graph] Dataset written",
		"entities", idx.NumEntities(), "artists", idx.NumArtists(), "users", idx.NumUsers(),
		"relations", common.RelationCount, "triples", len(triples), "path", params.OutputPath,
	)
	return res, nil
}
