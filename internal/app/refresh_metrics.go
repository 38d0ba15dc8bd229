package app

import (
	"encoding/json"
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

var metricsFlagDays int

var refreshMetricsCmd = &cobra.Command{
	Use:   "refresh-metrics",
	Short: "Pull production outcomes for stored patterns",
	Long: `Refresh-metrics queries the telemetry aggregator for each stored
pattern's outcomes over a trailing window and stores them for ranking.
Patterns with no recorded activity keep whatever metrics they had.

Credentials come from the environment:
  RECALL_AGGREGATOR_USER   basic auth user (optional)
  RECALL_AGGREGATOR_TOKEN  basic auth token (required)`,
	RunE: runRefreshMetrics,
}

func init() {
	refreshMetricsCmd.Flags().IntVar(&metricsFlagDays, "days", 0, "Trailing window in days (default from config)")

	rootCmd.AddCommand(refreshMetricsCmd)
}

func runRefreshMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	days := cfg.MetricsDays
	if metricsFlagDays > 0 {
		days = metricsFlagDays
	}

	// Construct the client explicitly so a missing token fails here with a
	// clear message instead of being silently dropped.
	client, err := observe.NewClient(cfg.Aggregator)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := engine.New(cfg, db,
		embedder.NewLocal(cfg.ModelPath, cfg.EmbeddingDim),
		gitlog.NewReader(cfg.RepoPath),
		client,
	)
	if err != nil {
		return err
	}

	result, err := eng.RefreshMetrics(cmd.Context(), days)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(output.Section("Metrics Refresh"))
	fmt.Println()
	fmt.Printf(" %s %d\n", output.StyleMuted.Render("Stored patterns:"), result.Patterns)
	fmt.Printf(" %s %s %s\n", output.StyleMuted.Render("Metrics updated:"),
		output.StyleSuccess.Render(fmt.Sprintf("%d", result.Updated)),
		output.StyleMuted.Render(fmt.Sprintf("(trailing %dd window)", days)))
	fmt.Println()
	return nil
}
