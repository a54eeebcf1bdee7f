package common

import "fmt"

// Relation identifies one of the four edge types of the listening graph.
// The numeric value is the id written to kg_final.txt.
type Relation int

const (
	RelationListenedTo  Relation = 0
	RelationListenedBy  Relation = 1
	RelationSimilarTo   Relation = 2
	RelationSimilarFrom Relation = 3
)

// RelationCount is the size of the relation taxonomy.
const RelationCount = 4

var relationNames = [RelationCount]string{
	"listened_to",
	"listened_by",
	"similar_to",
	"similar_from",
}

func (r Relation) String() string {
	if !r.Valid() {
		return fmt.Sprintf("relation(%d)", int(r))
	}
	return relationNames[r]
}

// Valid reports whether r is part of the taxonomy.
func (r Relation) Valid() bool {
	return r >= 0 && r < RelationCount
}

// Reverse returns the relation that mirrors r. listened_to and listened_by
// mirror each other, as do similar_to and similar_from.
func (r Relation) Reverse() Relation {
	switch r {
	case RelationListenedTo:
		return RelationListenedBy
	case RelationListenedBy:
		return RelationListenedTo
	case RelationSimilarTo:
		return RelationSimilarFrom
	case RelationSimilarFrom:
		return RelationSimilarTo
	}
	return r
}

// ParseRelation resolves a relation name such as "similar_to".
func ParseRelation(name string) (Relation, error) {
	for i, n := range relationNames {
		if n == name {
			return Relation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relation %q", name)
}

// Triple is a directed, weighted edge of the knowledge graph. Head and Tail
// are entity ids: artists occupy [0, nArtists), users follow them.
type Triple struct {
	Head     int
	Relation Relation
	Tail     int
	Weight   int
}

// Reverse swaps head and tail and mirrors the relation.
func (t Triple) Reverse() Triple {
	return Triple{
		Head:     t.Tail,
		Relation: t.Relation.Reverse(),
		Tail:     t.Head,
		Weight:   t.Weight,
	}
}

// Edge is the adjacency view of a triple, seen from its head.
type Edge struct {
	Tail     int
	Relation Relation
	Weight   int
}

// Adjacency maps a head entity to its outgoing edges in insertion order.
// It is filled once while building and treated as read-only afterwards.
type Adjacency map[int][]Edge

// EdgeCount returns the total number of edges.
func (a Adjacency) EdgeCount() int {
	n := 0
	for _, edges := range a {
		n += len(edges)
	}
	return n
}

// Interaction is one raw (user, item, weight) record from user_artists.dat,
// still expressed in raw ids.
type Interaction struct {
	User   int
	Item   int
	Weight int
}

// Rating is one labeled row of ratings_final.txt. User is a user index
// (not offset by the artist count) and Item an artist index.
type Rating struct {
	User  int
	Item  int
	Label int
}
