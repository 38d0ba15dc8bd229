package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/output"
)

var acceptCmd = &cobra.Command{
	Use:   "accept <pattern-id>",
	Short: "Record that a recommendation was used",
	Long: `Accept bumps a pattern's usage count. Accepted patterns rank higher
in future queries through the usage signal.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccept,
}

func init() {
	rootCmd.AddCommand(acceptCmd)
}

func runAccept(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.Accept(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf(" %s %s\n",
		output.StyleSuccess.Render("Recorded usage for"),
		output.StyleBold.Render(shortID(args[0])))
	return nil
}
