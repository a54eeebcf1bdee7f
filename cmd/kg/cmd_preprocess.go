package main

import (
	"fmt"
	"path/filepath"

	"github.com/OFFIS-RIT/listenkg/internal/timing"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"

	"github.com/spf13/cobra"
)

func runPreprocess(cmd *cobra.Command, _ []string) error {
	if reduce && (maxUsers <= 0 || maxArtists <= 0) {
		return fmt.Errorf("--max-users and --max-artists must be positive when reducing")
	}
	defer timing.Track("Preprocessing time", "dataset", cfg.Dataset)()

	client := graph.NewGraphClient(graph.NewGraphClientParams{
		Seed:          cfg.Seed,
		ParallelUsers: cfg.ParallelUsers,
		MinCoListens:  cfg.MinCoListens,
	})
	res, err := client.ProcessDataset(cmd.Context(), graph.ProcessParams{
		RawPath:    filepath.Join(cfg.RawDataPath, cfg.Dataset),
		OutputPath: filepath.Join(cfg.DataPath, cfg.Dataset),
		Reduce:     reduce,
		MaxUsers:   maxUsers,
		MaxArtists: maxArtists,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "artists:      %d\n", res.NumArtists)
	fmt.Fprintf(w, "users:        %d\n", res.NumUsers)
	fmt.Fprintf(w, "threshold:    %g\n", res.Threshold)
	fmt.Fprintf(w, "similarities: %d\n", res.Similarities)
	fmt.Fprintf(w, "triples:      %d\n", res.Triples)
	fmt.Fprintf(w, "written:      %s, %s, %s\n", res.KGPath, res.RatingsPath, res.MetadataPath)
	return nil
}
