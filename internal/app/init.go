package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/engine"
	"github.com/blackwell-systems/recall/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new pattern store",
	Long: `Init creates an empty pattern store at the configured location.
It refuses to run against an existing store and never touches existing data;
delete the store file first if you want to start over.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := engine.Init(cfg.StorePath); err != nil {
		return err
	}

	fmt.Printf(" %s %s\n",
		output.StyleSuccess.Render("Created pattern store at"),
		output.StyleBold.Render(cfg.StorePath))
	fmt.Println(output.StyleMuted.Render(" Run 'recall refresh' to index your commit history."))
	return nil
}
