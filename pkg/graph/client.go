package graph

// GraphClient runs the preprocessing pipeline that turns raw listening
// logs into ratings_final.txt, kg_final.txt and dataset_metadata.txt.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	seed         uint64
	parallel     int
	minCoListens int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Seed drives negative sampling; equal seeds and inputs give identical
// files. ParallelUsers controls how many workers count co-listening pairs.
// MinCoListens defaults to DefaultMinCoListens.
type NewGraphClientParams struct {
	Seed          uint64
	ParallelUsers int
	MinCoListens  int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		Seed:          555,
//		ParallelUsers: 4,
//	})
//	res, err := client.ProcessDataset(ctx, graph.ProcessParams{
//		RawPath:    "rawdata/music",
//		OutputPath: "final_data/music",
//	})
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	parallel := params.ParallelUsers
	if parallel <= 0 {
		parallel = 1
	}
	minCo := params.MinCoListens
	if minCo <= 0 {
		minCo = DefaultMinCoListens
	}
	return &GraphClient{
		seed:         params.Seed,
		parallel:     parallel,
		minCoListens: minCo,
	}
}
