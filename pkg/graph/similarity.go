package graph

import (
	"cmp"
	"context"
	"slices"

	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// DefaultMinCoListens is the minimum number of shared listeners an artist
// pair needs to become a similarity edge. Small or heavily filtered
// datasets often produce no pair above it.
const DefaultMinCoListens = 2

// Pair is an unordered artist pair in canonical order, A < B.
type Pair struct {
	A, B int
}

func newPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// PairCounts maps an artist pair to its number of shared listeners.
type PairCounts map[Pair]int

// CountUser adds the pairs of one user's listening set to counts. It is
// the unit of work of the co-listening computation: its results can be
// merged in any order. The artists are expected to be distinct.
func CountUser(artists []int, counts PairCounts) {
	for i := range artists {
		for j := i + 1; j < len(artists); j++ {
			counts[newPair(artists[i], artists[j])]++
		}
	}
}

// Merge adds src into dst.
func (dst PairCounts) Merge(src PairCounts) {
	for p, n := range src {
		dst[p] += n
	}
}

// SimilarPair is an artist pair that passed the co-listening threshold.
type SimilarPair struct {
	A, B  int
	Count int
}

// CoListenCounter computes artist co-listening counts. Workers > 1
// partitions users into contiguous chunks counted in parallel; the merged
// result is identical to the sequential one.
type CoListenCounter struct {
	MinCoListens int
	Workers      int
}

// Count returns the co-listening count of every artist pair sharing at
// least one listener. listening holds one distinct-artist list per user.
func (c CoListenCounter) Count(ctx context.Context, listening [][]int) (PairCounts, error) {
	workers := max(1, min(c.Workers, len(listening)))
	if workers == 1 {
		counts := make(PairCounts)
		for _, artists := range listening {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			CountUser(artists, counts)
		}
		return counts, nil
	}

	partials := make([]PairCounts, workers)
	chunk := (len(listening) + workers - 1) / workers

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for w := range workers {
		start := min(w*chunk, len(listening))
		end := min(start+chunk, len(listening))
		eg.Go(func() error {
			counts := make(PairCounts)
			for _, artists := range listening[start:end] {
				if err := gCtx.Err(); err != nil {
					return err
				}
				CountUser(artists, counts)
			}
			partials[w] = counts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := make(PairCounts)
	for _, p := range partials {
		merged.Merge(p)
	}
	return merged, nil
}

// Similarities returns the pairs whose count reaches the minimum, sorted
// by (A, B). Pairs below the minimum are dropped, not zero-weighted.
func (c CoListenCounter) Similarities(ctx context.Context, listening [][]int) ([]SimilarPair, error) {
	minCo := c.MinCoListens
	if minCo <= 0 {
		minCo = DefaultMinCoListens
	}

	counts, err := c.Count(ctx, listening)
	if err != nil {
		return nil, err
	}

	out := make([]SimilarPair, 0, len(counts))
	for p, n := range counts {
		if n >= minCo {
			out = append(out, SimilarPair{A: p.A, B: p.B, Count: n})
		}
	}
	slices.SortFunc(out, func(x, y SimilarPair) int {
		if d := cmp.Compare(x.A, y.A); d != 0 {
			return d
		}
		return cmp.Compare(x.B, y.B)
	})

	if len(out) == 0 {
		logger.Warn("[Similarity] No artist pair reached the co-listening threshold",
			"min_co_listens", minCo, "candidate_pairs", len(counts),
			"hint", "small or filtered datasets rarely share listeners; try a larger selection",
		)
	} else {
		logger.Info("[Similarity] Artist similarities computed",
			"pairs", len(out), "candidate_pairs", len(counts), "min_co_listens", minCo,
		)
	}
	return out, nil
}
