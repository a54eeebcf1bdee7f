package store

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
)

// DatasetInfo is the stored summary of an exported dataset.
type DatasetInfo struct {
	Name        string    `json:"name"`
	Entities    int       `json:"entities"`
	Relations   int       `json:"relations"`
	Triples     int       `json:"triples"`
	Filtered    bool      `json:"filtered"`
	KGHash      string    `json:"kg_file_hash,omitempty"`
	RatingsHash string    `json:"ratings_file_hash,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GraphStorage persists knowledge graph triples per dataset and answers
// neighborhood queries over them.
type GraphStorage interface {
	// SaveGraph replaces the stored triples of dataset atomically.
	SaveGraph(ctx context.Context, dataset string, meta *metadata.Metadata, triples common.Matrix) error
	DeleteGraph(ctx context.Context, dataset string) error

	// Neighbors returns the outgoing triples of entity, optionally limited
	// to one relation, in stored order.
	Neighbors(ctx context.Context, dataset string, entity int, relation *common.Relation, limit int) ([]common.Triple, error)
	Datasets(ctx context.Context) ([]DatasetInfo, error)
}
