package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/dataset"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"

	"github.com/spf13/cobra"
)

func openDataset(verify bool) *dataset.Dataset {
	return dataset.New(dataset.NewDatasetParams{
		Root:         cfg.DataPath,
		Name:         cfg.Dataset,
		UseSmall:     useSmall,
		VerifyOnLoad: verify,
	})
}

func printStats(w io.Writer, kg *dataset.KG) {
	s := graph.ComputeStats(kg.Adjacency)
	fmt.Fprintf(w, "type:        %s\n", kg.Annotations.Type)
	fmt.Fprintf(w, "entities:    %d\n", kg.Annotations.NEntity)
	fmt.Fprintf(w, "relations:   %d\n", kg.Annotations.NRelation)
	fmt.Fprintf(w, "triples:     %d\n", kg.Triples.Rows())
	fmt.Fprintf(w, "cache:       %s\n", kg.CacheState)
	fmt.Fprintf(w, "nodes:       %d\n", s.Nodes)
	fmt.Fprintf(w, "edges:       %d\n", s.Edges)
	fmt.Fprintf(w, "degree:      min %d, max %d, mean %.2f\n", s.MinDegree, s.MaxDegree, s.MeanDegree)

	names := make([]string, 0, len(s.Relations))
	for name := range s.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-13s %d\n", name, s.Relations[name])
	}

	if kg.Metadata.Filtered() {
		requestedUsers, _ := kg.Metadata.Int(metadata.KeyMaxUsersRequested)
		requestedArtists, _ := kg.Metadata.Int(metadata.KeyMaxArtistsRequested)
		fmt.Fprintf(w, "filtered:    max users %d, max artists %d\n", requestedUsers, requestedArtists)
	}
}

// runInspect loads the graph and the ratings and prints the statistics,
// the first adjacency rows and the history of --user-id.
func runInspect(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ds := openDataset(false)

	kg, err := ds.LoadKG(cmd.Context())
	if err != nil {
		return err
	}
	printStats(w, kg)

	heads := make([]int, 0, len(kg.Adjacency))
	for head := range kg.Adjacency {
		heads = append(heads, head)
	}
	slices.Sort(heads)
	if len(heads) > maxNodes {
		heads = heads[:maxNodes]
	}
	fmt.Fprintln(w, "adjacency:")
	for _, head := range heads {
		edges := kg.Adjacency[head]
		parts := make([]string, 0, len(edges))
		for _, e := range edges {
			parts = append(parts, fmt.Sprintf("%s->%d", e.Relation, e.Tail))
		}
		fmt.Fprintf(w, "  %d: %s\n", head, strings.Join(parts, " "))
	}

	ratings, _, err := ds.LoadRatings(cmd.Context())
	if err != nil {
		logger.Warn("Could not load ratings", "dataset", ds.Name(), "err", err)
	} else {
		history := dataset.UserHistory(ratings)
		fmt.Fprintf(w, "users with history: %d\n", len(history))
		fmt.Fprintf(w, "user %d history: %v\n", userID, history[userID])
	}

	if visualize {
		logger.Warn("Rendering is not built in, export the triples and use an external tool", "max_nodes", maxNodes)
	}
	logger.Debug("Traversal settings", "algorithm", algorithm, "max_hops", maxHops)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	kg, err := openDataset(false).LoadKG(cmd.Context())
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), kg)
	return nil
}

// runVerify fails when a digest does not match. Missing digests are
// reported but do not fail.
func runVerify(cmd *cobra.Command, _ []string) error {
	report, err := openDataset(false).Verify(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "kg       %s\n", report.KG.Status)
	fmt.Fprintf(w, "ratings  %s\n", report.Ratings.Status)
	if report.Violated() {
		return fmt.Errorf("integrity check failed for dataset %s", cfg.Dataset)
	}
	return nil
}

func runHead(cmd *cobra.Command, args []string) error {
	name := common.KGFileBase + common.TextExt
	if len(args) == 1 {
		name = args[0]
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("expected a file name inside the dataset directory, got %q", name)
	}

	rows, err := loader.Head(filepath.Join(cfg.DataPath, cfg.Dataset, name), headRows)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return nil
}
