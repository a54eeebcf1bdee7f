// Package dataset loads a preprocessed dataset directory: the knowledge
// graph, the ratings and the metadata, going through the binary cache and
// reporting file integrity.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"
	"github.com/OFFIS-RIT/listenkg/pkg/integrity"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
)

// Dataset points at <Root>/<Name>. UseSmall selects the *_small file
// variants.
type Dataset struct {
	root         string
	name         string
	useSmall     bool
	verifyOnLoad bool
	cache        *cache.Manager
}

// NewDatasetParams configures a Dataset. Cache may be shared between
// datasets; a nil Cache gets a private manager. VerifyOnLoad makes LoadKG
// check file digests and attach the report.
type NewDatasetParams struct {
	Root         string
	Name         string
	UseSmall     bool
	VerifyOnLoad bool
	Cache        *cache.Manager
}

func New(params NewDatasetParams) *Dataset {
	c := params.Cache
	if c == nil {
		c = cache.NewManager()
	}
	name := params.Name
	if name == "" {
		name = "music"
	}
	return &Dataset{
		root:         params.Root,
		name:         name,
		useSmall:     params.UseSmall,
		verifyOnLoad: params.VerifyOnLoad,
		cache:        c,
	}
}

func (d *Dataset) Name() string { return d.name }
func (d *Dataset) Dir() string  { return filepath.Join(d.root, d.name) }

func (d *Dataset) base(name string) string {
	if d.useSmall {
		name += common.SmallSuffix
	}
	return filepath.Join(d.Dir(), name)
}

func (d *Dataset) KGTextPath() string       { return d.base(common.KGFileBase) + common.TextExt }
func (d *Dataset) KGCachePath() string      { return d.base(common.KGFileBase) + common.CacheExt }
func (d *Dataset) RatingsTextPath() string  { return d.base(common.RatingsFileBase) + common.TextExt }
func (d *Dataset) RatingsCachePath() string { return d.base(common.RatingsFileBase) + common.CacheExt }
func (d *Dataset) MetadataPath() string     { return filepath.Join(d.Dir(), metadata.FileName) }

// Metadata reads dataset_metadata.txt. Datasets without one yield nil
// and no error.
func (d *Dataset) Metadata() (*metadata.Metadata, error) {
	return metadata.LoadOptional(d.MetadataPath())
}

// Annotations are values derived while loading. They are kept apart from
// the file metadata, which is never modified.
type Annotations struct {
	NEntity   int    `json:"n_entity"`
	NRelation int    `json:"n_relation"`
	Type      string `json:"type"`
}

// KG is a loaded knowledge graph.
type KG struct {
	Triples     common.Matrix
	Adjacency   common.Adjacency
	Metadata    *metadata.Metadata
	Annotations Annotations
	CacheState  cache.State
	Integrity   *integrity.Report
}

func (d *Dataset) kgEntry(meta *metadata.Metadata) cache.Entry {
	entry := cache.Entry{
		TextPath:   d.KGTextPath(),
		CachePath:  d.KGCachePath(),
		Dependents: []string{d.RatingsCachePath()},
	}
	// metadata describes the canonical files only
	if d.useSmall {
		return entry
	}
	if expected, ok := meta.ExpectedEntities(); ok {
		entry.Validate = func(m common.Matrix) error {
			if got := m.MaxEntity() + 1; got != expected {
				return fmt.Errorf("triples span %d entities, metadata declares %d", got, expected)
			}
			return nil
		}
	}
	return entry
}

// LoadKG loads the triples, cached when possible, and builds the
// adjacency. n_entity counts the distinct ids among heads and tails and
// n_relation the distinct relation ids.
func (d *Dataset) LoadKG(ctx context.Context) (*KG, error) {
	meta, err := d.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if meta.Filtered() {
		logger.Info("[Dataset] Filtered dataset detected from metadata", "dataset", d.name)
	}

	res, err := d.cache.Load(ctx, d.kgEntry(meta))
	if err != nil {
		return nil, err
	}

	kg := &KG{
		Triples:    res.Matrix,
		Adjacency:  graph.BuildAdjacency(res.Matrix),
		Metadata:   meta,
		CacheState: res.State,
	}
	kg.Annotations = annotate(res.Matrix, meta)

	if d.verifyOnLoad {
		report, err := d.Verify(ctx)
		if err != nil {
			return nil, err
		}
		kg.Integrity = &report
	}

	logger.Info("[Dataset] Knowledge graph loaded",
		"dataset", d.name, "entities", kg.Annotations.NEntity,
		"relations", kg.Annotations.NRelation, "triples", res.Matrix.Rows(),
		"cache", res.State.String(),
	)
	return kg, nil
}

func annotate(m common.Matrix, meta *metadata.Metadata) Annotations {
	entities := make(map[int32]struct{})
	relations := make(map[int32]struct{})
	for i := range m.Rows() {
		row := m.Row(i)
		entities[row[0]] = struct{}{}
		entities[row[2]] = struct{}{}
		relations[row[1]] = struct{}{}
	}
	a := Annotations{
		NEntity:   len(entities),
		NRelation: len(relations),
		Type:      "full",
	}
	if meta.Filtered() {
		a.Type = "filtered"
	}
	return a
}

// LoadRatings loads the (user, item, label) matrix with the same cache
// policy as the KG. Its cache is a dependent of the KG cache and is
// dropped whenever the KG cache is.
func (d *Dataset) LoadRatings(ctx context.Context) (common.Matrix, cache.State, error) {
	res, err := d.cache.Load(ctx, cache.Entry{
		TextPath:  d.RatingsTextPath(),
		CachePath: d.RatingsCachePath(),
	})
	if err != nil {
		return common.Matrix{}, 0, err
	}
	logger.Info("[Dataset] Ratings loaded", "dataset", d.name, "ratings", res.Matrix.Rows(), "cache", res.State.String())
	return res.Matrix, res.State, nil
}

// Verify compares the current KG and ratings text digests with the ones
// recorded in the metadata. It always checks the canonical files, since
// the recorded digests belong to them.
func (d *Dataset) Verify(ctx context.Context) (integrity.Report, error) {
	meta, err := d.Metadata()
	if err != nil {
		return integrity.Report{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return integrity.Verify(ctx, integrity.VerifyParams{
		KGPath:      filepath.Join(d.Dir(), common.KGFileBase+common.TextExt),
		RatingsPath: filepath.Join(d.Dir(), common.RatingsFileBase+common.TextExt),
		Metadata:    meta,
	})
}

// UserHistory groups the items of positive ratings (label 1) by user, in
// row order.
func UserHistory(ratings common.Matrix) map[int][]int {
	history := make(map[int][]int)
	for i := range ratings.Rows() {
		r := ratings.Rating(i)
		if r.Label == 1 {
			history[r.User] = append(history[r.User], r.Item)
		}
	}
	return history
}
