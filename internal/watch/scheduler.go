// Package watch runs reconciliation cycles on a fixed interval.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/state"
)

// Runner runs a single reconciliation cycle.
type Runner interface {
	RunCycle(ctx context.Context, inv *inventory.Inventory, policy reconcile.Policy) reconcile.Report
}

type Options struct {
	// Interval is measured from the start of one cycle to the start of the next.
	Interval time.Duration
	// Reload re-reads the inventory before every cycle after the first.
	Reload bool
	Policy reconcile.Policy
	// History, when set, records a summary of every cycle.
	History state.Manager
}

// Scheduler is a strictly sequential loop: a cycle never starts before the
// previous one has returned.
type Scheduler struct {
	runner    Runner
	store     inventory.Store
	inventory inventory.Inventory
	opts      Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(r Runner, store inventory.Store, inv inventory.Inventory, opts Options) *Scheduler {
	return &Scheduler{
		runner:    r,
		store:     store,
		inventory: inv,
		opts:      opts,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Run loops until ctx is cancelled, then returns nil. Failed cycles are
// logged and the loop goes on.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Starting watch", "interval", s.opts.Interval, "records", len(s.inventory.Records))
	inv := s.inventory

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			break
		}
		start := s.now()

		if s.opts.Reload && cycle > 1 {
			inv = s.reload(inv)
		}

		report := s.runner.RunCycle(ctx, &inv, s.opts.Policy)
		if report.Err != nil && !report.Cancelled {
			slog.Error("Cycle failed", "cycle", report.ID, "error", report.Err)
		}
		s.record(report)

		wait := s.opts.Interval - s.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		slog.Debug("Sleeping until next cycle", "wait", wait)
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}

	slog.Info("Stopping watch")
	return nil
}

func (s *Scheduler) reload(current inventory.Inventory) inventory.Inventory {
	loaded, err := s.store.Load()
	if err != nil {
		slog.Error("Failed to reload inventory, keeping previous", "error", err)
		return current
	}
	return loaded
}

func (s *Scheduler) record(report reconcile.Report) {
	if s.opts.History == nil || report.ID == "" {
		return
	}
	// Detached so a cancelled run still records its final cycle.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.History.SaveSummary(ctx, state.FromReport(report)); err != nil {
		slog.Warn("Failed to record cycle history", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
