package pgx

import (
	"context"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const neighborsSQL = `
SELECT head, relation, tail, weight
FROM kg_triples
WHERE dataset = $1
  AND head = $2
  AND ($3::smallint IS NULL OR relation = $3)
ORDER BY position
LIMIT $4;
`

const datasetsSQL = `
SELECT name, entities, relations, triples, filtered, kg_file_hash, ratings_file_hash, updated_at
FROM kg_datasets
ORDER BY name;
`

// Neighbors returns up to limit outgoing triples of entity. A limit <= 0
// means no limit.
func (s *GraphDBStorage) Neighbors(ctx context.Context, dataset string, entity int, relation *common.Relation, limit int) ([]common.Triple, error) {
	var rel *int16
	if relation != nil {
		r := int16(*relation)
		rel = &r
	}
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}

	rows, err := s.conn.Query(ctx, neighborsSQL, dataset, int32(entity), rel, lim)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Triple, error) {
		var head, tail, weight int32
		var r int16
		if err := row.Scan(&head, &r, &tail, &weight); err != nil {
			return common.Triple{}, err
		}
		return common.Triple{
			Head:     int(head),
			Relation: common.Relation(r),
			Tail:     int(tail),
			Weight:   int(weight),
		}, nil
	})
}

func (s *GraphDBStorage) Datasets(ctx context.Context) ([]store.DatasetInfo, error) {
	rows, err := s.conn.Query(ctx, datasetsSQL)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (store.DatasetInfo, error) {
		var d store.DatasetInfo
		var entities, relations, triples int32
		err := row.Scan(&d.Name, &entities, &relations, &triples, &d.Filtered, &d.KGHash, &d.RatingsHash, &d.UpdatedAt)
		d.Entities, d.Relations, d.Triples = int(entities), int(relations), int(triples)
		return d, err
	})
}
