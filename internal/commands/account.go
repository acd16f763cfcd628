package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/engine"
)

func newAccountCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountCreateCommand(dir))
	cmd.AddCommand(newAccountBalanceCommand(dir))
	cmd.AddCommand(newAccountSetPinCommand(dir))
	cmd.AddCommand(newAccountLookupCommand(dir))
	cmd.AddCommand(newAccountListCommand(dir))
	return cmd
}

func newAccountCreateCommand(dir *string) *cobra.Command {
	var firstName, lastName, email, pin string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			acct, err := a.engine.Register(ctx, engine.RegisterParams{
				FirstName: firstName, LastName: lastName, Email: email,
			})
			if err != nil {
				return err
			}
			if pin != "" {
				if err := a.gate.Set(ctx, acct.ID, pin, ""); err != nil {
					return fmt.Errorf("setting PIN: %w", err)
				}
			}

			a.audit(acct.ID.String(), "account_create", "number: "+acct.Number, "", "completed")
			fmt.Printf("Created account %s for %s\n", acct.Number, acct.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "holder first name (required)")
	_ = cmd.MarkFlagRequired("first-name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "holder last name")
	cmd.Flags().StringVar(&email, "email", "", "holder email")
	cmd.Flags().StringVar(&pin, "pin", "", "initial 4-digit PIN")

	return cmd
}

func newAccountBalanceCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.resolve(cmd.Context(), account)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", acct.Number, acct.Balance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newAccountSetPinCommand(dir *string) *cobra.Command {
	var account, newPin, oldPin string

	cmd := &cobra.Command{
		Use:   "set-pin",
		Short: "Set or change an account PIN",
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
			if err := a.gate.Set(ctx, acct.ID, newPin, oldPin); err != nil {
				return err
			}

			a.audit(acct.ID.String(), "set_pin", "", "", "completed")
			fmt.Printf("PIN updated for %s\n", acct.Number)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&newPin, "pin", "", "new 4-digit PIN (required)")
	_ = cmd.MarkFlagRequired("pin")
	cmd.Flags().StringVar(&oldPin, "old-pin", "", "current PIN, required when one is already set")

	return cmd
}

func newAccountLookupCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <number>",
		Short: "Look up the holder of an account number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()

			pub, err := a.engine.LookupByNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", pub.Number, pub.Name)
			return nil
		},
	}
	return cmd
}

func newAccountListCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.store.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, acct := range accounts {
				fmt.Printf("%s  %-30s %12s\n", acct.Number, acct.Name(), acct.Balance.StringFixed(2))
			}
			return nil
		},
	}
	return cmd
}
