// Package cli is the command-line host of the factoring ledger.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/factoring/internal/app"
	"github.com/odyssey-erp/factoring/internal/factoring"
)

var version = "0.1.0"

type options struct {
	factory RuntimeFactory
	out     io.Writer
	errOut  io.Writer

	envFile    string
	jsonOut    bool
	metricsOut string
}

// Option customizes the root command.
type Option func(*options)

// WithRuntimeFactory replaces NewRuntime.
func WithRuntimeFactory(f RuntimeFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithOutput redirects command output and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(o *options) {
		o.out = out
		o.errOut = errOut
	}
}

// NewRootCommand assembles the factoring command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &options{factory: NewRuntime, out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:   "factoring",
		Short: "Invoice-factoring ledger",
		Long: `factoring lists invoices for sale at a discount, lets buyers purchase
them and reports platform-wide statistics.

The store is selected with FACTORING_STORE (redis by default, postgres,
or memory). The memory store lives only as long as one command, so list
and purchase refuse it outside test mode.

The --as flag names the authenticated caller; mutating commands are
rejected unless it matches the seller or buyer they act for.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(o.out)
	root.SetErr(o.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&o.envFile, "env-file", "", "load environment from this file (default .env when present)")
	flags.BoolVar(&o.jsonOut, "json", false, "print results as JSON")
	flags.StringVar(&o.metricsOut, "metrics-out", "", "write Prometheus metrics to this file after the command")

	root.AddCommand(
		newListCommand(o),
		newPurchaseCommand(o),
		newInvoiceCommand(o),
		newStatsCommand(o),
		newMigrateCommand(o),
	)
	return root
}

// run builds a Runtime for the command, calls fn and releases it. Metrics
// are written whether or not fn succeeds.
func (o *options) run(cmd *cobra.Command, mutating bool, fn func(ctx context.Context, rt *Runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	cfg, err := app.LoadConfig(envFiles...)
	if err != nil {
		return err
	}

	rt, err := o.factory(ctx, cfg, app.NewLogger(o.errOut, cfg))
	if err != nil {
		return err
	}
	defer rt.Close()

	if mutating {
		if err := rt.Config.RequirePersistentStore(); err != nil {
			return err
		}
	}

	defer func() {
		err = errors.Join(err, rt.WriteMetrics(o.metricsOut))
	}()
	return fn(ctx, rt)
}

// ExitCode maps a command error to a process exit status. Ledger
// rejections exit with 2, everything else with 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case factoring.IsRejection(err):
		return 2
	default:
		return 1
	}
}

func parseInvoiceID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid invoice id %q", raw)
	}
	return id, nil
}

func callerContext(ctx context.Context, caller string) (context.Context, error) {
	if caller == "" {
		return nil, errors.New("--as is required")
	}
	return factoring.WithCaller(ctx, factoring.Identity(caller)), nil
}
