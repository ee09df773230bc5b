package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/buildinfo"
	"github.com/bankbook-dev/bankbook/internal/logging"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bankbook",
		Short:   "Personal finance tracking from bank statements",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init()
		},
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newSetCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newCategoriesCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newForecastCommand())
	rootCmd.AddCommand(newAnnotateCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}
