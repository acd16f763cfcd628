package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/engine"
	"github.com/tillfold-dev/tillfold/internal/model"
)

func newDepositCommand(dir *string) *cobra.Command {
	var account, amount, pin, ref string

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit into an account",
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
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}

			res, err := a.engine.Deposit(ctx, engine.DepositParams{
				AccountID: acct.ID, Amount: amt, PIN: pin, ClientRef: ref,
			})
			if err != nil {
				a.audit(acct.ID.String(), "deposit", amt.StringFixed(2), "", string(model.KindOf(err)))
				return err
			}

			a.audit(acct.ID.String(), "deposit", amt.StringFixed(2), res.Movement.ID.String(), "completed")
			fmt.Printf("Deposited %s; balance %s\n", amt.StringFixed(2), res.NewBalance.StringFixed(2))
			return nil
		},
	}

	addMovementFlags(cmd, &account, &amount, &pin)
	cmd.Flags().StringVar(&ref, "ref", "", "client reference for safe retries")

	return cmd
}

func newWithdrawCommand(dir *string) *cobra.Command {
	var account, amount, pin, ref string

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw from an account",
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
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}

			res, err := a.engine.Withdraw(ctx, engine.DepositParams{
				AccountID: acct.ID, Amount: amt, PIN: pin, ClientRef: ref,
			})
			if err != nil {
				a.audit(acct.ID.String(), "withdraw", amt.StringFixed(2), "", string(model.KindOf(err)))
				return err
			}

			a.audit(acct.ID.String(), "withdraw", amt.StringFixed(2), res.Movement.ID.String(), "completed")
			fmt.Printf("Withdrew %s; balance %s\n", amt.StringFixed(2), res.NewBalance.StringFixed(2))
			return nil
		},
	}

	addMovementFlags(cmd, &account, &amount, &pin)
	cmd.Flags().StringVar(&ref, "ref", "", "client reference for safe retries")

	return cmd
}

func newTransferCommand(dir *string) *cobra.Command {
	var from, to, amount, pin, note, category, ref string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer between two accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			fromAcct, err := a.resolve(ctx, from)
			if err != nil {
				return err
			}
			toAcct, err := a.resolve(ctx, to)
			if err != nil {
				return err
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}

			res, err := a.engine.Transfer(ctx, engine.TransferParams{
				From: fromAcct.ID, To: toAcct.ID, Amount: amt,
				PIN: pin, Note: note, Category: category, ClientRef: ref,
			})
			details := fmt.Sprintf("%s to %s", amt.StringFixed(2), toAcct.Number)
			if err != nil {
				a.audit(fromAcct.ID.String(), "transfer", details, "", string(model.KindOf(err)))
				return err
			}

			a.audit(fromAcct.ID.String(), "transfer", details, res.Movement.ID.String(), "completed")
			fmt.Printf("Transferred %s to %s; balance %s\n",
				amt.StringFixed(2), toAcct.Number, res.NewBalance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "sender account number (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&to, "to", "", "recipient account number (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&pin, "pin", "", "sender PIN (required)")
	_ = cmd.MarkFlagRequired("pin")
	cmd.Flags().StringVar(&note, "note", "", "note attached to the movement")
	cmd.Flags().StringVar(&category, "category", "", "spending category")
	cmd.Flags().StringVar(&ref, "ref", "", "client reference for safe retries")

	return cmd
}

func newMovementsCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "movements",
		Short: "List an account's movements, newest first",
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
			movements, err := a.engine.ListMovements(ctx, acct.ID)
			if err != nil {
				return err
			}
			for _, mv := range movements {
				sign := "+"
				if mv.Kind == model.KindWithdraw || (mv.Kind == model.KindTransfer && mv.From == acct.ID) {
					sign = "-"
				}
				fmt.Printf("%s  %-9s %s%10s  %-12s %s\n",
					mv.CreatedAt.Format("2006-01-02 15:04"), mv.Kind,
					sign, mv.Amount.StringFixed(2), mv.Category, mv.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newAnnotateCommand(dir *string) *cobra.Command {
	var account, movement, note string

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Attach a note to a movement",
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
			movementID, err := uuid.Parse(movement)
			if err != nil {
				return fmt.Errorf("parsing movement id %q: %w", movement, err)
			}

			mv, err := a.engine.Annotate(ctx, movementID, acct.ID, note)
			if err != nil {
				return err
			}
			fmt.Printf("Annotated movement %s\n", mv.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "acting account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&movement, "movement", "", "movement id (required)")
	_ = cmd.MarkFlagRequired("movement")
	cmd.Flags().StringVar(&note, "note", "", "note text (required)")
	_ = cmd.MarkFlagRequired("note")

	return cmd
}

func addMovementFlags(cmd *cobra.Command, account, amount, pin *string) {
	cmd.Flags().StringVar(account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(amount, "amount", "", "amount (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(pin, "pin", "", "account PIN (required)")
	_ = cmd.MarkFlagRequired("pin")
}
