package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/report"
)

const statementDateFormat = "2006-01-02"

func newStatementCommand(dir *string) *cobra.Command {
	var account, from, to, csvPath string
	var byCategory bool

	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Build an account statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			acct, err := a.resolve(ctx, account)
			if err != nil {
				return err
			}

			var fromTime, toTime time.Time
			if from != "" {
				fromTime, err = time.Parse(statementDateFormat, from)
				if err != nil {
					return fmt.Errorf("parsing --from %q: %w", from, err)
				}
			}
			if to != "" {
				toTime, err = time.Parse(statementDateFormat, to)
				if err != nil {
					return fmt.Errorf("parsing --to %q: %w", to, err)
				}
				// Inclusive end date.
				toTime = toTime.Add(24*time.Hour - time.Nanosecond)
			}

			movements, err := a.engine.ListMovements(ctx, acct.ID)
			if err != nil {
				return err
			}
			st := report.Build(acct.ID, movements, fromTime, toTime)

			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", csvPath, err)
				}
				defer f.Close()
				if err := report.WriteCSV(f, st); err != nil {
					return err
				}
				fmt.Printf("Wrote %d lines to %s\n", len(st.Lines), csvPath)
				return nil
			}

			if byCategory {
				for _, ct := range report.ByCategory(st) {
					fmt.Printf("%-15s %12s  (%d movements)\n", ct.Category, ct.Total.StringFixed(2), ct.Count)
				}
				return nil
			}

			fmt.Printf("Statement for %s\n", acct.Number)
			for _, line := range st.Lines {
				fmt.Printf("%s  %-9s %-3s %10s  %-12s %s\n",
					line.Movement.CreatedAt.Format("2006-01-02 15:04"), line.Movement.Kind,
					line.Direction, line.Movement.Amount.StringFixed(2),
					line.Movement.Category, line.Movement.Note)
			}
			fmt.Printf("Credits %s  Debits %s  Net %s\n",
				st.Credits.StringFixed(2), st.Debits.StringFixed(2), st.Net.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the statement to a CSV file")
	cmd.Flags().BoolVar(&byCategory, "by-category", false, "show spending totals per category")

	return cmd
}
