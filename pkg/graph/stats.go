package graph

import (
	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

// Stats summarizes an adjacency. Degrees count both endpoints of every
// edge, so a node's degree is its in-degree plus its out-degree.
type Stats struct {
	Nodes         int            `json:"nodes"`
	Edges         int            `json:"edges"`
	RelationTypes int            `json:"relation_types"`
	Relations     map[string]int `json:"relations"`
	MinDegree     int            `json:"min_degree"`
	MaxDegree     int            `json:"max_degree"`
	MeanDegree    float64        `json:"mean_degree"`
}

// ComputeStats walks the adjacency once.
func ComputeStats(adj common.Adjacency) Stats {
	degrees := make(map[int]int)
	relations := make(map[common.Relation]int)
	edges := 0

	for head, out := range adj {
		if _, ok := degrees[head]; !ok {
			degrees[head] = 0
		}
		for _, e := range out {
			degrees[head]++
			degrees[e.Tail]++
			relations[e.Relation]++
			edges++
		}
	}

	s := Stats{
		Nodes:         len(degrees),
		Edges:         edges,
		RelationTypes: len(relations),
		Relations:     make(map[string]int, len(relations)),
	}
	for r, n := range relations {
		s.Relations[r.String()] = n
	}
	if len(degrees) == 0 {
		return s
	}

	first := true
	total := 0
	for _, d := range degrees {
		total += d
		if first {
			s.MinDegree, s.MaxDegree = d, d
			first = false
			continue
		}
		s.MinDegree = min(s.MinDegree, d)
		s.MaxDegree = max(s.MaxDegree, d)
	}
	s.MeanDegree = float64(total) / float64(len(degrees))
	return s
}
