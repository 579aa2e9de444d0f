package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/prompt"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/state"
	"github.com/spf13/cobra"
)

type cycleMode int

const (
	modeCheck cycleMode = iota
	modeUpdate
	modePrune
	modeRun
)

func (m cycleMode) use() string {
	switch m {
	case modeUpdate:
		return "update"
	case modePrune:
		return "prune"
	case modeRun:
		return "run"
	}
	return "check"
}

func (m cycleMode) short() string {
	switch m {
	case modeUpdate:
		return "Update outdated records once"
	case modePrune:
		return "Drop invalid records from the inventory once"
	case modeRun:
		return "Update outdated and prune invalid records once"
	}
	return "Classify every record without changing anything"
}

// policy maps the mode and the force flags to the actions a cycle may take.
func (m cycleMode) policy(cfg *config.Config) reconcile.Policy {
	p := reconcile.Policy{
		ForceUpdate: cfg.Inventory.ForceUpdate,
		ForcePrune:  cfg.Inventory.ForcePrune,
	}
	switch m {
	case modeUpdate:
		p.Update = true
	case modePrune:
		p.Prune = true
		p.Persist = true
	case modeRun:
		p.Update = true
		p.Prune = true
		p.Persist = true
	}
	return p
}

func newCycleCommand(opts *InventoryOptions, mode cycleMode) *cobra.Command {
	return &cobra.Command{
		Use:   mode.use(),
		Short: mode.short(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd); err != nil {
				return err
			}
			return runOnce(cmd, opts, mode)
		},
	}
}

// runOnce runs a single cycle and turns its report into an exit status.
func runOnce(cmd *cobra.Command, opts *InventoryOptions, mode cycleMode) error {
	cfg := opts.Config
	store, inv, err := opts.load()
	if err != nil {
		return err
	}

	m := metrics.New(false)
	client, err := newClient(cfg, m)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create DNS client", err)
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create address resolver", err)
	}
	history := openHistory(cfg, m)
	if history != nil {
		defer history.Close()
	}

	term := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr())
	engine := reconcile.NewEngine(client, resolver, store, reconcile.ConfirmFunc(term.ConfirmContext), cfg.RequestTimeout(), m)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report := engine.RunCycle(ctx, &inv, mode.policy(cfg))
	saveSummary(history, report)

	if err := renderReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	return reportError(report)
}

func renderReport(w io.Writer, format string, report reconcile.Report) error {
	if format == "json" {
		return RenderReportJSON(w, report)
	}
	return RenderReport(w, report)
}

// reportError maps a finished cycle to the process exit status.
func reportError(report reconcile.Report) error {
	if report.Err != nil {
		return WrapExitError(ExitFailure, "cycle failed", report.Err)
	}
	if report.Cancelled {
		return NewExitError(ExitFailure, "cycle cancelled")
	}
	if n := report.Unresolved(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) left invalid or failed", n))
	}
	return nil
}

func saveSummary(history state.Manager, report reconcile.Report) {
	if history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := history.SaveSummary(ctx, state.FromReport(report)); err != nil {
		slog.Warn("Failed to record cycle summary", "cycle", report.ID, "error", err)
	}
}
