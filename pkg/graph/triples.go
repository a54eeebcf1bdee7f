package graph

import (
	"fmt"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

// BuildTriples emits the four relation groups in fixed order:
// listened_to, listened_by, similar_to, similar_from. Each reverse group
// mirrors its forward group row by row. Listening weights become the
// weights of the user-artist triples, co-listening counts those of the
// artist-artist triples.
func BuildTriples(nArtists int, listens []Listen, similar []SimilarPair) []common.Triple {
	triples := make([]common.Triple, 0, 2*len(listens)+2*len(similar))

	for _, l := range listens {
		triples = append(triples, common.Triple{
			Head:     nArtists + l.User,
			Relation: common.RelationListenedTo,
			Tail:     l.Artist,
			Weight:   l.Weight,
		})
	}
	forward := len(triples)
	for _, t := range triples[:forward] {
		triples = append(triples, t.Reverse())
	}

	start := len(triples)
	for _, s := range similar {
		triples = append(triples, common.Triple{
			Head:     s.A,
			Relation: common.RelationSimilarTo,
			Tail:     s.B,
			Weight:   s.Count,
		})
	}
	end := len(triples)
	for _, t := range triples[start:end] {
		triples = append(triples, t.Reverse())
	}

	return triples
}

// BuildAdjacency groups the rows of a triple matrix by head, keeping row
// order within each head. Three- and four-column matrices are accepted
// alike; a missing weight column means weight 1.
func BuildAdjacency(m common.Matrix) common.Adjacency {
	adj := make(common.Adjacency)
	for i := range m.Rows() {
		t := m.Triple(i)
		adj[t.Head] = append(adj[t.Head], common.Edge{
			Tail:     t.Tail,
			Relation: t.Relation,
			Weight:   t.Weight,
		})
	}
	return adj
}

type tripleKey struct {
	head, tail int
	relation   common.Relation
}

// CheckTriples validates a triple matrix against the entity layout: ids
// in [0, nEntities), relation endpoints in the right sub-range, and every
// forward triple matched by its reverse. It returns one error per kind of
// violation found, with the first offending row.
func CheckTriples(m common.Matrix, nArtists, nEntities int) []error {
	var errs []error
	seen := make(map[string]bool)
	report := func(kind string, row int, t common.Triple) {
		if seen[kind] {
			return
		}
		seen[kind] = true
		errs = append(errs, fmt.Errorf("%s at row %d: (%d, %s, %d)", kind, row, t.Head, t.Relation, t.Tail))
	}

	isArtist := func(id int) bool { return id >= 0 && id < nArtists }
	isUser := func(id int) bool { return id >= nArtists && id < nEntities }

	balance := make(map[tripleKey]int)
	for i := range m.Rows() {
		t := m.Triple(i)
		if t.Head < 0 || t.Head >= nEntities || t.Tail < 0 || t.Tail >= nEntities {
			report("entity out of range", i, t)
			continue
		}

		var ok bool
		switch t.Relation {
		case common.RelationListenedTo:
			ok = isUser(t.Head) && isArtist(t.Tail)
		case common.RelationListenedBy:
			ok = isArtist(t.Head) && isUser(t.Tail)
		case common.RelationSimilarTo, common.RelationSimilarFrom:
			ok = isArtist(t.Head) && isArtist(t.Tail)
		default:
			report("unknown relation", i, t)
			continue
		}
		if !ok {
			report("relation endpoints in wrong sub-range", i, t)
		}

		switch t.Relation {
		case common.RelationListenedTo, common.RelationSimilarTo:
			balance[tripleKey{t.Head, t.Tail, t.Relation}]++
		default:
			r := t.Reverse()
			balance[tripleKey{r.Head, r.Tail, r.Relation}]--
		}
	}

	for k, n := range balance {
		if n != 0 {
			errs = append(errs, fmt.Errorf("unbalanced reverse for (%d, %s, %d): %+d", k.head, k.relation, k.tail, n))
			break
		}
	}
	return errs
}
