package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:     "tillfold",
		Short:   "Personal ledger with payment requests and group expenses",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "data directory")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAccountCommand(&dir))
	rootCmd.AddCommand(newDepositCommand(&dir))
	rootCmd.AddCommand(newWithdrawCommand(&dir))
	rootCmd.AddCommand(newTransferCommand(&dir))
	rootCmd.AddCommand(newMovementsCommand(&dir))
	rootCmd.AddCommand(newAnnotateCommand(&dir))
	rootCmd.AddCommand(newRequestCommand(&dir))
	rootCmd.AddCommand(newExpenseCommand(&dir))
	rootCmd.AddCommand(newStatementCommand(&dir))

	return rootCmd
}
