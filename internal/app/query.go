package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/output"
	"github.com/blackwell-systems/recall/internal/search"
)

var (
	queryFlagTop       int
	queryFlagMinScore  float64
	queryFlagTags      []string
	queryFlagPath      string
	queryFlagSinceDays int
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Get ranked pattern recommendations",
	Long: `Query embeds the given text and returns the stored patterns most
relevant to it, ranked by a blend of semantic similarity, recency, prior
usage, and observed production outcomes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryFlagTop, "top", 0, "Number of recommendations to return (default from config)")
	queryCmd.Flags().Float64Var(&queryFlagMinScore, "min-score", 0, "Drop candidates below this similarity (unset: no threshold)")
	queryCmd.Flags().StringSliceVar(&queryFlagTags, "tag", nil, "Only patterns carrying this tag (can be repeated)")
	queryCmd.Flags().StringVar(&queryFlagPath, "path", "", "Only patterns touching files matching this glob (e.g. 'internal/**/*.go')")
	queryCmd.Flags().IntVar(&queryFlagSinceDays, "since-days", 0, "Only patterns from the last N days")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	filters := search.Filters{
		Tags:     queryFlagTags,
		PathGlob: queryFlagPath,
	}
	// Similarity spans [-1, 1], so a zero threshold is a real cutoff; only
	// apply one when the flag was given.
	if cmd.Flags().Changed("min-score") {
		filters.MinScore = &queryFlagMinScore
	}
	if queryFlagSinceDays > 0 {
		filters.Since = time.Now().UTC().AddDate(0, 0, -queryFlagSinceDays)
	}

	text := strings.Join(args, " ")
	result, err := eng.Query(cmd.Context(), text, queryFlagTop, filters)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(output.Section(fmt.Sprintf("Recommendations for %q", text)))
	fmt.Println()
	if flagVerbose {
		fmt.Printf(" %s %s\n\n", output.StyleMuted.Render("query id"), result.QueryID)
	}

	if len(result.Recommendations) == 0 {
		fmt.Println(output.StyleMuted.Render(" No matching patterns. Run 'recall refresh' to index commits."))
		fmt.Println()
		return nil
	}

	for i, rec := range result.Recommendations {
		commit := rec.Pattern.SourceCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}

		fmt.Printf(" %s %s\n",
			output.StyleBold.Render(fmt.Sprintf("%d.", i+1)),
			output.StyleBold.Render(rec.Pattern.Description))
		fmt.Printf("    %s\n", output.ScoreBar(rec.Score, 10))
		fmt.Printf("    %s %s  %s %s\n",
			output.StyleMuted.Render("commit"), commit,
			output.StyleMuted.Render("pattern"), shortID(rec.PatternID))
		if len(rec.Pattern.Files) > 0 {
			fmt.Printf("    %s %s\n",
				output.StyleMuted.Render("files"),
				strings.Join(rec.Pattern.Files, ", "))
		}
		if len(rec.Pattern.Tags) > 0 {
			fmt.Printf("    %s %s\n",
				output.StyleMuted.Render("tags"),
				strings.Join(rec.Pattern.Tags, ", "))
		}
		fmt.Printf("    %s\n", output.StyleMuted.Render(rec.Explanation))
		if flagVerbose {
			fmt.Printf("    %s sim %.2f  recency %.2f  usage %.2f  success %.2f\n",
				output.StyleMuted.Render("signals"),
				rec.Similarity, rec.Recency, rec.Usage, rec.Success)
		}
		fmt.Println()
	}

	fmt.Println(output.StyleMuted.Render(
		" Used one? Run 'recall accept <pattern>' to improve future rankings."))
	fmt.Println()
	return nil
}

// shortID truncates a pattern id for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
