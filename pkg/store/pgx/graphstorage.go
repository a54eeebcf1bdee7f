package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
	"github.com/OFFIS-RIT/listenkg/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Triples are
// bulk loaded with COPY inside one transaction per dataset.
type GraphDBStorage struct {
	conn      pgxIConn
	chunkSize int
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithChunkSize sets how many triples go into one COPY.
func WithChunkSize(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage using an
// existing pool or connection.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:      conn,
		chunkSize: 50_000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

const upsertDatasetSQL = `
INSERT INTO kg_datasets (name, entities, relations, triples, filtered, kg_file_hash, ratings_file_hash, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (name) DO UPDATE
SET entities          = EXCLUDED.entities,
    relations         = EXCLUDED.relations,
    triples           = EXCLUDED.triples,
    filtered          = EXCLUDED.filtered,
    kg_file_hash      = EXCLUDED.kg_file_hash,
    ratings_file_hash = EXCLUDED.ratings_file_hash,
    updated_at        = now();
`

const deleteTriplesSQL = `DELETE FROM kg_triples WHERE dataset = $1;`

const deleteDatasetSQL = `DELETE FROM kg_datasets WHERE name = $1;`

// SaveGraph replaces the stored graph of dataset. Entity and relation
// counts come from the metadata when declared and from the matrix
// otherwise.
func (s *GraphDBStorage) SaveGraph(ctx context.Context, dataset string, meta *metadata.Metadata, triples common.Matrix) error {
	logger.Debug("[Store][SaveGraph] Saving graph", "dataset", dataset, "triples", triples.Rows())

	entities, ok := meta.ExpectedEntities()
	if !ok {
		entities = triples.MaxEntity() + 1
	}
	relations := common.RelationCount
	if n, ok := meta.Int(metadata.KeyRelations); ok {
		relations = int(n)
	}
	kgHash, _ := meta.Str(metadata.KeyKGFileHash)
	ratingsHash, _ := meta.Str(metadata.KeyRatingsFileHash)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertDatasetSQL,
		dataset, entities, relations, triples.Rows(), meta.Filtered(), kgHash, ratingsHash,
	); err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteTriplesSQL, dataset); err != nil {
		return fmt.Errorf("failed to clear triples: %w", err)
	}

	columns := []string{"dataset", "position", "head", "relation", "tail", "weight"}
	err = store.ChunkRange(triples.Rows(), s.chunkSize, func(start, end int) error {
		n, err := tx.CopyFrom(ctx, pgxv5.Identifier{"kg_triples"}, columns, &tripleSource{
			dataset: dataset,
			m:       triples,
			next:    start,
			end:     end,
		})
		if err != nil {
			return err
		}
		logger.Debug("[Store][SaveGraph] Copied chunk", "dataset", dataset, "rows", n, "start", start)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to copy triples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.Info("[Store] Graph saved", "dataset", dataset, "triples", triples.Rows())
	return nil
}

// DeleteGraph removes the dataset row; its triples cascade.
func (s *GraphDBStorage) DeleteGraph(ctx context.Context, dataset string) error {
	tag, err := s.conn.Exec(ctx, deleteDatasetSQL, dataset)
	if err != nil {
		return err
	}
	logger.Info("[Store] Graph deleted", "dataset", dataset, "rows", tag.RowsAffected())
	return nil
}

// tripleSource streams matrix rows [next, end) into COPY.
type tripleSource struct {
	dataset string
	m       common.Matrix
	next    int
	end     int
	cur     common.Triple
	pos     int
}

func (t *tripleSource) Next() bool {
	if t.next >= t.end {
		return false
	}
	t.cur = t.m.Triple(t.next)
	t.pos = t.next
	t.next++
	return true
}

func (t *tripleSource) Values() ([]any, error) {
	return []any{
		t.dataset,
		int32(t.pos),
		int32(t.cur.Head),
		int16(t.cur.Relation),
		int32(t.cur.Tail),
		int32(t.cur.Weight),
	}, nil
}

func (t *tripleSource) Err() error { return nil }
