package main

import (
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/logger/console"

	"github.com/spf13/cobra"
)

var algorithms = []string{"bfs", "dijkstra", "prim"}

// --- Global Command Variables ---
var (
	cfg *config.Config

	dataPath   string
	rawPath    string
	datasetArg string
	seed       uint64
	parallel   int
	debug      bool

	algorithm  string // accepted for compatibility, no traversal runs
	maxHops    int
	userID     int
	visualize  bool // rendering is done by external tools
	maxNodes   int
	useSmall   bool
	reduce     bool
	maxUsers   int
	maxArtists int

	headRows int

	rootCmd = &cobra.Command{
		Use:   "kg",
		Short: "Build and inspect listening-history knowledge graphs",
		Long: `kg turns raw listening logs into knowledge graph triples and
labeled ratings, caches them and checks their integrity.

Without a subcommand it loads the selected dataset and prints its
statistics and the history of one user.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runInspect, // Defined in cmd_inspect.go
	}

	// --- Preprocessing ---
	preprocessCmd = &cobra.Command{
		Use:   "preprocess",
		Short: "Build kg_final.txt, ratings_final.txt and the metadata from the raw data",
		RunE:  runPreprocess, // Defined in cmd_preprocess.go
	}

	// --- Inspection ---
	statsCmd = &cobra.Command{
		Use:     "stats",
		Aliases: []string{"load"},
		Short:   "Load the knowledge graph through the cache and print its statistics",
		RunE:    runStats, // Defined in cmd_inspect.go
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Compare the text file digests with the recorded metadata",
		RunE:  runVerify, // Defined in cmd_inspect.go
	}
	headCmd = &cobra.Command{
		Use:   "head [file]",
		Short: "Print the first rows of a dataset file (default kg_final.txt)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHead, // Defined in cmd_inspect.go
	}

	// --- Remote ---
	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Upload the dataset artifacts to the configured bucket",
		RunE:  runPublish, // Defined in cmd_remote.go
	}
	fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Download the dataset artifacts from the configured bucket",
		RunE:  runFetch, // Defined in cmd_remote.go
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Copy the knowledge graph triples into Postgres",
		RunE:  runExport, // Defined in cmd_remote.go
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations",
		RunE:  runMigrate, // Defined in cmd_remote.go
	}
	enqueueCmd = &cobra.Command{
		Use:   "enqueue",
		Short: "Ask the workers to rebuild the dataset",
		RunE:  runEnqueue, // Defined in cmd_remote.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataPath, "data-path", "", "directory of the preprocessed datasets (env DATA_PATH)")
	pf.StringVar(&rawPath, "raw-path", "", "directory of the raw datasets (env RAW_DATA_PATH)")
	pf.StringVar(&datasetArg, "dataset", "", "dataset name, e.g. music (env DATASET)")
	pf.Uint64Var(&seed, "seed", 0, "negative sampling seed (env SEED)")
	pf.IntVar(&parallel, "parallel", 0, "workers for co-listening counts (env PARALLEL_USERS)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging (env DEBUG)")
	pf.BoolVar(&useSmall, "use-small", false, "use the *_small file variants")

	f := rootCmd.Flags()
	f.StringVar(&algorithm, "algorithm", "bfs", "graph algorithm: bfs, dijkstra or prim (not run)")
	f.IntVar(&maxHops, "max-hops", 2, "maximum hops for traversals")
	f.IntVar(&userID, "user-id", 0, "user index whose history is printed")
	f.BoolVar(&visualize, "visualize", false, "request a rendering (done by external tools)")
	f.IntVar(&maxNodes, "max-nodes", 100, "maximum number of head entities to print")

	preprocessCmd.Flags().BoolVar(&reduce, "reduce", false, "filter the raw interactions before preprocessing")
	preprocessCmd.Flags().IntVar(&maxUsers, "max-users", 1000, "users kept when reducing")
	preprocessCmd.Flags().IntVar(&maxArtists, "max-artists", 3000, "artists kept when reducing")

	enqueueCmd.Flags().BoolVar(&reduce, "reduce", false, "filter the raw interactions before preprocessing")
	enqueueCmd.Flags().IntVar(&maxUsers, "max-users", 1000, "users kept when reducing")
	enqueueCmd.Flags().IntVar(&maxArtists, "max-artists", 3000, "artists kept when reducing")

	headCmd.Flags().IntVarP(&headRows, "rows", "n", 5, "number of rows to print")

	rootCmd.AddCommand(preprocessCmd, statsCmd, verifyCmd, headCmd)
	rootCmd.AddCommand(publishCmd, fetchCmd, exportCmd, migrateCmd, enqueueCmd)
}

// setup loads the environment, lets changed flags override it and starts
// the console logger.
func setup(cmd *cobra.Command, _ []string) error {
	cfg = config.Load()

	flags := cmd.Flags()
	if flags.Changed("data-path") {
		cfg.DataPath = dataPath
	}
	if flags.Changed("raw-path") {
		cfg.RawDataPath = rawPath
	}
	if flags.Changed("dataset") {
		cfg.Dataset = datasetArg
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("parallel") {
		cfg.ParallelUsers = parallel
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Output: cmd.ErrOrStderr(),
	}))

	if !slices.Contains(algorithms, algorithm) {
		return fmt.Errorf("unknown algorithm %q, expected one of %v", algorithm, algorithms)
	}
	if maxHops < 0 || maxNodes < 0 {
		return fmt.Errorf("--max-hops and --max-nodes must not be negative")
	}
	return cfg.ValidateFor()
}
