package graph

import (
	"math/rand/v2"
	"slices"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

// Listen is a retained interaction in index space: a user index, an
// artist index and the raw listening weight.
type Listen struct {
	User   int
	Artist int
	Weight int
}

// IngestResult holds the labeled ratings and the data the triple builder
// needs.
type IngestResult struct {
	// Listens holds every retained interaction in file order, duplicates
	// included.
	Listens []Listen
	// Listening holds, per user index, the distinct artists in first-seen
	// order.
	Listening [][]int
	// Ratings holds the labeled rows: per user its listened artists,
	// followed by the sampled negatives.
	Ratings []common.Rating
	// Threshold is the median listening weight. Weights at or above it
	// are labeled positive.
	Threshold float64

	Positives int
	Negatives int
}

// Ingest maps raw interactions into index space, labels them against the
// global median weight and samples negatives.
//
// Rows are dropped when they fall outside the selection (if any) or name
// an artist the indexer does not know. Users are indexed on their first
// retained row. When a (user, artist) pair repeats, the last weight wins
// for labeling while Listens keeps every row.
//
// For each user, negatives are drawn uniformly without replacement from
// the artists the user never listened to; their number equals the number
// of listened artists, capped by the size of that complement.
func Ingest(idx *EntityIndexer, rows []common.Interaction, selection *Selection, rng *rand.Rand) IngestResult {
	var res IngestResult
	var weights []map[int]int

	for _, row := range rows {
		if selection != nil && !selection.Has(row.User, row.Item) {
			continue
		}
		artist, ok := idx.Artist(row.Item)
		if !ok {
			continue
		}
		user := idx.AddUser(row.User)
		if user == len(weights) {
			weights = append(weights, make(map[int]int))
			res.Listening = append(res.Listening, nil)
		}
		if _, seen := weights[user][artist]; !seen {
			res.Listening[user] = append(res.Listening[user], artist)
		}
		weights[user][artist] = row.Weight
		res.Listens = append(res.Listens, Listen{User: user, Artist: artist, Weight: row.Weight})
	}

	var all []int
	for user, artists := range res.Listening {
		for _, artist := range artists {
			all = append(all, weights[user][artist])
		}
	}
	res.Threshold = Median(all)

	nArtists := idx.NumArtists()
	for user, artists := range res.Listening {
		for _, artist := range artists {
			label := 0
			if float64(weights[user][artist]) >= res.Threshold {
				label = 1
				res.Positives++
			}
			res.Ratings = append(res.Ratings, common.Rating{User: user, Item: artist, Label: label})
		}

		complement := make([]int, 0, nArtists-len(artists))
		for a := range nArtists {
			if _, listened := weights[user][a]; !listened {
				complement = append(complement, a)
			}
		}
		for _, artist := range sample(rng, complement, min(len(artists), len(complement))) {
			res.Ratings = append(res.Ratings, common.Rating{User: user, Item: artist, Label: 0})
			res.Negatives++
		}
	}

	return res
}

// sample picks n elements of pool without replacement with a partial
// Fisher-Yates shuffle. pool is reordered in place.
func sample(rng *rand.Rand, pool []int, n int) []int {
	for i := range n {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Median returns the median of values; for an even count it is the mean
// of the two middle values. An empty input yields 1.
func Median(values []int) float64 {
	if len(values) == 0 {
		return 1
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
}

// NewRand returns the deterministic generator used for negative sampling.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
