package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/output"
)

var refreshFlagCommits int

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Index recent commits into the pattern store",
	Long: `Refresh walks the repository's most recent commits, extracts one
pattern per qualifying commit, embeds each new pattern, and stores it with
its vector. Patterns already in the store are left untouched, so refresh is
safe to run repeatedly.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().IntVar(&refreshFlagCommits, "commits", 0, "Number of recent commits to walk (default from config)")

	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	limit := cfg.RefreshLimit
	if refreshFlagCommits > 0 {
		limit = refreshFlagCommits
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := eng.Refresh(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(output.Section("Refresh"))
	fmt.Println()
	fmt.Printf(" %s %d\n", output.StyleMuted.Render("Patterns extracted:"), result.Extracted)
	fmt.Printf(" %s %s\n", output.StyleMuted.Render("Newly indexed:"),
		output.StyleSuccess.Render(fmt.Sprintf("%d", result.Indexed)))
	fmt.Printf(" %s %d\n", output.StyleMuted.Render("Already indexed:"), result.AlreadyIndexed)
	if result.Skipped > 0 {
		fmt.Printf(" %s %s\n", output.StyleMuted.Render("Skipped:"),
			output.StyleWarning.Render(fmt.Sprintf("%d", result.Skipped)))
	}
	fmt.Println()
	return nil
}
