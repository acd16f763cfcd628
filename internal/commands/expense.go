package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/expense"
	"github.com/tillfold-dev/tillfold/internal/model"
)

func newExpenseCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Manage group expenses",
	}
	cmd.AddCommand(newExpenseCreateCommand(dir))
	cmd.AddCommand(newExpensePayCommand(dir))
	cmd.AddCommand(newExpenseSettleCommand(dir))
	cmd.AddCommand(newExpenseCancelCommand(dir))
	cmd.AddCommand(newExpenseListCommand(dir))
	cmd.AddCommand(newExpenseCategoriesCommand())
	return cmd
}

func newExpenseCreateCommand(dir *string) *cobra.Command {
	var creator, title, amount, category string
	var members, shares []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Split a cost across a group",
		Long: `Split a cost across a group.

Equal split:  --member ACC111111 --member ACC222222
Custom split: --share ACC111111=40 --share ACC222222=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			creatorAcct, err := a.resolve(ctx, creator)
			if err != nil {
				return err
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}
			if len(members) > 0 && len(shares) > 0 {
				return fmt.Errorf("use either --member or --share, not both")
			}

			params := expense.CreateParams{
				Creator: creatorAcct.ID, Title: title,
				TotalAmount: amt, Category: category,
			}
			if len(shares) > 0 {
				params.SplitMethod = model.SplitCustom
				params.Shares, err = parseShares(shares)
				if err != nil {
					return err
				}
			} else {
				params.SplitMethod = model.SplitEqual
				params.Members = members
			}

			e, err := a.expenses.Create(ctx, params)
			if err != nil {
				return err
			}

			a.audit(creatorAcct.ID.String(), "expense_create",
				fmt.Sprintf("%s: %s", title, amt.StringFixed(2)), "", "active")
			fmt.Printf("Created expense %s (%s, %d members)\n", e.ID, amt.StringFixed(2), len(e.Members))
			for _, m := range e.Members {
				acct, err := a.store.GetAccount(ctx, m.AccountID)
				if err != nil {
					return err
				}
				fmt.Printf("  %s owes %s (%s)\n", acct.Number, m.Owed.StringFixed(2), m.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&creator, "creator", "", "paying account number (required)")
	_ = cmd.MarkFlagRequired("creator")
	cmd.Flags().StringVar(&title, "title", "", "expense title (required)")
	_ = cmd.MarkFlagRequired("title")
	cmd.Flags().StringVar(&amount, "amount", "", "total amount (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&category, "category", "", "expense category")
	cmd.Flags().StringArrayVar(&members, "member", nil, "member account number for an equal split (repeatable)")
	cmd.Flags().StringArrayVar(&shares, "share", nil, "NUMBER=AMOUNT share for a custom split (repeatable)")

	return cmd
}

func parseShares(raw []string) ([]expense.Share, error) {
	shares := make([]expense.Share, 0, len(raw))
	for _, s := range raw {
		number, amount, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("share %q is not NUMBER=AMOUNT", s)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing share amount %q: %w", amount, err)
		}
		shares = append(shares, expense.Share{AccountNumber: number, Amount: amt})
	}
	return shares, nil
}

func newExpensePayCommand(dir *string) *cobra.Command {
	var account, pin string

	cmd := &cobra.Command{
		Use:   "pay <expense-id>",
		Short: "Pay your share of an expense",
		Args:  cobra.ExactArgs(1),
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
			expenseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing expense id %q: %w", args[0], err)
			}

			result, err := a.expenses.Pay(ctx, expenseID, acct.ID, pin)
			if err != nil {
				a.audit(acct.ID.String(), "expense_pay", expenseID.String(), "", string(model.KindOf(err)))
				return err
			}

			a.audit(acct.ID.String(), "expense_pay", expenseID.String(),
				result.Movement.ID.String(), "completed")
			fmt.Printf("Paid %s; balance %s\n",
				result.Movement.Amount.StringFixed(2), result.NewBalance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "member account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&pin, "pin", "", "account PIN (required)")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func newExpenseSettleCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "settle <expense-id>",
		Short: "Mark a fully paid expense as completed",
		Args:  cobra.ExactArgs(1),
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
			expenseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing expense id %q: %w", args[0], err)
			}

			e, err := a.expenses.Settle(ctx, expenseID, acct.ID)
			if err != nil {
				return err
			}

			a.audit(acct.ID.String(), "expense_settle", expenseID.String(), "", string(e.Status))
			fmt.Printf("Expense %s is %s\n", e.ID, e.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "creator account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newExpenseCancelCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "cancel <expense-id>",
		Short: "Cancel an active expense and its outstanding requests",
		Args:  cobra.ExactArgs(1),
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
			expenseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing expense id %q: %w", args[0], err)
			}

			e, err := a.expenses.Cancel(ctx, expenseID, acct.ID)
			if err != nil {
				return err
			}

			a.audit(acct.ID.String(), "expense_cancel", expenseID.String(), "", "cancelled")
			fmt.Printf("Cancelled expense %s\n", e.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "creator account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newExpenseListCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses an account belongs to, newest first",
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
			expenses, err := a.expenses.ListForAccount(ctx, acct.ID)
			if err != nil {
				return err
			}
			for _, e := range expenses {
				paid := 0
				for _, m := range e.Members {
					if m.Status == model.MemberPaid {
						paid++
					}
				}
				fmt.Printf("%s  %-10s %10s  %d/%d paid  %s\n",
					e.ID, e.Status, e.TotalAmount.StringFixed(2), paid, len(e.Members), e.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newExpenseCategoriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the recognized expense categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range model.ExpenseCategories {
				fmt.Println(c)
			}
			return nil
		},
	}
	return cmd
}
