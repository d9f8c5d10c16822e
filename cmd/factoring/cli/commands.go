package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/factoring/internal/factoring"
)

func newListCommand(o *options) *cobra.Command {
	var (
		caller   string
		seller   string
		amount   int64
		discount uint64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an invoice for sale",
		Example: `  # list a 1000 invoice at 5% discount (selling price 950)
  factoring list --as alice --amount 1000 --discount 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seller == "" {
				seller = caller
			}
			return o.run(cmd, true, func(ctx context.Context, rt *Runtime) error {
				ctx, err := callerContext(ctx, caller)
				if err != nil {
					return err
				}
				id, err := rt.Ledger.ListInvoice(ctx, factoring.Identity(seller), amount, discount)
				if err != nil {
					return err
				}
				if o.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]uint64{"invoice_id": id})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Invoice listed with ID: %d\n", id)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&caller, "as", "", "authenticated caller")
	cmd.Flags().StringVar(&seller, "seller", "", "seller identity (defaults to --as)")
	cmd.Flags().Int64Var(&amount, "amount", 0, "face amount of the invoice")
	cmd.Flags().Uint64Var(&discount, "discount", 0, "discount rate in percent")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPurchaseCommand(o *options) *cobra.Command {
	var caller, buyer string
	cmd := &cobra.Command{
		Use:   "purchase <invoice-id>",
		Short: "Purchase a listed invoice",
		Example: `  factoring purchase 1 --as bob`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			if buyer == "" {
				buyer = caller
			}
			return o.run(cmd, true, func(ctx context.Context, rt *Runtime) error {
				ctx, err := callerContext(ctx, caller)
				if err != nil {
					return err
				}
				if err := rt.Ledger.PurchaseInvoice(ctx, id, factoring.Identity(buyer)); err != nil {
					return err
				}
				if o.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"invoice_id": id, "buyer": buyer})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Invoice %d purchased by %s\n", id, buyer)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&caller, "as", "", "authenticated caller")
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer identity (defaults to --as)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newInvoiceCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "invoice <invoice-id>",
		Short: "Show one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			return o.run(cmd, false, func(ctx context.Context, rt *Runtime) error {
				inv, err := rt.Ledger.GetInvoice(ctx, id)
				if err != nil {
					return err
				}
				if o.jsonOut {
					return writeJSON(cmd.OutOrStdout(), inv)
				}
				return writeInvoice(cmd.OutOrStdout(), id, inv)
			})
		},
	}
}

func newStatsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show platform statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, false, func(ctx context.Context, rt *Runtime) error {
				stats, err := rt.Ledger.GetPlatformStats(ctx)
				if err != nil {
					return err
				}
				if o.jsonOut {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return writeStats(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newMigrateCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store schema (postgres only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, false, func(ctx context.Context, rt *Runtime) error {
				applied, err := rt.Migrate(ctx)
				if err != nil {
					return err
				}
				if !applied {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "store %s has no schema\n", rt.Config.Store)
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
				return err
			})
		},
	}
}
