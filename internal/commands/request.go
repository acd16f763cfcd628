package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/request"
)

func newRequestCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage payment requests",
	}
	cmd.AddCommand(newRequestCreateCommand(dir))
	cmd.AddCommand(newRequestAcceptCommand(dir))
	cmd.AddCommand(newRequestDeclineCommand(dir))
	cmd.AddCommand(newRequestListCommand(dir))
	return cmd
}

func newRequestCreateCommand(dir *string) *cobra.Command {
	var from, to, amount, note string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ask another account for payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*dir)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			sender, err := a.resolve(ctx, from)
			if err != nil {
				return err
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}

			req, err := a.requests.Create(ctx, request.CreateParams{
				Sender: sender.ID, ReceiverNumber: to, Amount: amt, Note: note,
			})
			if err != nil {
				return err
			}

			a.audit(sender.ID.String(), "request_create",
				fmt.Sprintf("%s from %s", amt.StringFixed(2), to), "", "pending")
			fmt.Printf("Created request %s for %s\n", req.ID, amt.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "requesting account number (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&to, "to", "", "account number being asked to pay (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&note, "note", "", "note shown to the payer")

	return cmd
}

func newRequestAcceptCommand(dir *string) *cobra.Command {
	var account, pin string

	cmd := &cobra.Command{
		Use:   "accept <request-id>",
		Short: "Accept a request and pay it",
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
			requestID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing request id %q: %w", args[0], err)
			}

			req, result, err := a.requests.Accept(ctx, requestID, acct.ID, pin)
			if err != nil {
				a.audit(acct.ID.String(), "request_accept", requestID.String(), "", string(model.KindOf(err)))
				return err
			}

			a.audit(acct.ID.String(), "request_accept", requestID.String(),
				result.Movement.ID.String(), "completed")
			fmt.Printf("Paid request %s (%s); balance %s\n",
				req.ID, req.Amount.StringFixed(2), result.NewBalance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "receiving account number (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&pin, "pin", "", "account PIN (required)")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func newRequestDeclineCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "decline <request-id>",
		Short: "Decline a request",
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
			requestID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing request id %q: %w", args[0], err)
			}

			req, err := a.requests.Decline(ctx, requestID, acct.ID)
			if err != nil {
				return err
			}

			a.audit(acct.ID.String(), "request_decline", requestID.String(), "", "declined")
			fmt.Printf("Declined request %s\n", req.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "receiving account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newRequestListCommand(dir *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests involving an account, newest first",
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
			reqs, err := a.requests.ListForAccount(ctx, acct.ID)
			if err != nil {
				return err
			}
			for _, req := range reqs {
				direction := "sent"
				if req.Receiver == acct.ID {
					direction = "received"
				}
				fmt.Printf("%s  %-8s %-8s %10s  %s\n",
					req.ID, direction, req.Status, req.Amount.StringFixed(2), req.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account number (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}
