package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pattern store contents",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := eng.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Println(output.Section("Pattern Store"))
	fmt.Println()

	tbl := output.NewTable("Namespace", "Entries")
	tbl.AddRow("patterns", fmt.Sprintf("%d", stats.PatternCount))
	tbl.AddRow("embeddings", fmt.Sprintf("%d", stats.EmbeddingCount))
	tbl.AddRow("metrics", fmt.Sprintf("%d", stats.MetricCount))
	tbl.Print()

	fmt.Println()
	fmt.Printf(" %s %s\n", output.StyleMuted.Render("Store:"), cfg.StorePath)
	if info, err := os.Stat(cfg.StorePath); err == nil {
		fmt.Printf(" %s %s\n", output.StyleMuted.Render("Size:"), formatBytes(info.Size()))
	}
	fmt.Printf(" %s %s\n", output.StyleMuted.Render("Model:"), cfg.ModelPath)
	fmt.Println()
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
