// Package app contains the Cobra command tree for recall.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/embedder"
	"github.com/blackwell-systems/recall/internal/engine"
	"github.com/blackwell-systems/recall/internal/gitlog"
	"github.com/blackwell-systems/recall/internal/observe"
	"github.com/blackwell-systems/recall/internal/output"
	"github.com/blackwell-systems/recall/internal/store"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Pattern recommendations from your own commit history",
	Long: `recall indexes your repository's commit history into a local pattern
store, embeds each pattern with a local model, and recommends the most
relevant past work for whatever you are about to build. Rankings blend
semantic similarity with recency, prior usage, and observed production
outcomes.

Typical workflow:
  recall init                     create the pattern store
  recall refresh                  index recent commits
  recall query "add auth"         get ranked recommendations
  recall refresh-metrics          pull production outcomes into rankings`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.AutoDetect()
		if flagNoColor {
			output.SetNoColor(true)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("recall", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  init             Create a new pattern store")
		fmt.Println("  refresh          Index recent commits into the store")
		fmt.Println("  refresh-metrics  Pull production outcomes for stored patterns")
		fmt.Println("  query            Get ranked pattern recommendations")
		fmt.Println("  accept           Record that a recommendation was used")
		fmt.Println("  stats            Show store contents")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/recall/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}

// buildEngine opens the store and wires the pipeline from config. The
// aggregator client is optional here; commands that need it construct it
// explicitly so a missing token fails loudly only where it matters.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	var metrics engine.MetricsSource
	if client, err := observe.NewClient(cfg.Aggregator); err == nil {
		metrics = client
	}

	eng, err := engine.New(cfg,
		db,
		embedder.NewLocal(cfg.ModelPath, cfg.EmbeddingDim),
		gitlog.NewReader(cfg.RepoPath),
		metrics,
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}
