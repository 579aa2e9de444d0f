package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/publicip"
	"github.com/google/uuid"
)

type Engine struct {
	provider provider.Provider
	resolver publicip.Resolver
	store    inventory.Store
	applier  *Applier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewEngine builds an engine. store may be nil when no cycle persists prunes.
func NewEngine(p provider.Provider, r publicip.Resolver, store inventory.Store, confirm Confirmer, timeout time.Duration, m *metrics.Metrics) *Engine {
	return &Engine{
		provider: p,
		resolver: r,
		store:    store,
		applier:  NewApplier(p, confirm, timeout),
		metrics:  m,
		now:      time.Now,
	}
}

// RunCycle reconciles every record of inv against one provider snapshot.
// Pruned records are removed from inv once all records are processed. It
// always returns a report; per-record problems never escape it.
func (e *Engine) RunCycle(ctx context.Context, inv *inventory.Inventory, policy Policy) (report Report) {
	report = Report{
		ID:        uuid.Must(uuid.NewV7()).String(),
		StartedAt: e.now(),
	}
	log := slog.With("cycle", report.ID)
	log.Info("Starting reconciliation cycle", "records", len(inv.Records))
	e.metrics.SetInventoryRecords(len(inv.Records))

	defer func() {
		report.Duration = e.now().Sub(report.StartedAt)
		e.metrics.SetCycleDuration(report.Duration)
		switch {
		case report.Cancelled:
			e.metrics.IncCycleRun("cancelled")
		case report.Err != nil:
			e.metrics.IncCycleRun("failure")
		default:
			e.metrics.IncCycleRun("success")
		}
	}()

	snap, err := TakeSnapshot(ctx, e.provider, *inv)
	if err != nil {
		report.Err = fmt.Errorf("snapshot: %w", err)
		report.Cancelled = ctx.Err() != nil
		log.Error("Cycle failed", "error", report.Err)
		return report
	}

	addrs := e.addresses(ctx, *inv)

	var pruned []int
	for i, d := range inv.Records {
		if ctx.Err() != nil {
			report.Cancelled = true
			log.Warn("Cycle cancelled", "processed", i, "remaining", len(inv.Records)-i)
			break
		}
		outcome := e.process(ctx, d, snap, addrs, policy)
		if outcome.Result.Action == Pruned {
			pruned = append(pruned, i)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		report.Counts.add(outcome)
	}
	if !report.Cancelled && ctx.Err() != nil {
		report.Cancelled = true
		log.Warn("Cycle cancelled", "processed", len(report.Outcomes), "remaining", len(inv.Records)-len(report.Outcomes))
	}

	if len(pruned) > 0 {
		inv.Remove(pruned...)
		if policy.Persist && e.store != nil {
			if err := e.store.Save(*inv); err != nil {
				report.Err = fmt.Errorf("save inventory: %w", err)
				log.Error("Failed to save inventory", "error", err)
			}
		}
	}

	c := report.Counts
	log.Info("Cycle completed",
		"matched", c.Matched,
		"outdated", c.Outdated,
		"invalid", c.Invalid,
		"updated", c.Updated,
		"pruned", c.Pruned,
		"failed", c.Failed,
		"skipped", c.Skipped)
	return report
}

// process handles one record. A panic is contained and reported as Failed.
func (e *Engine) process(ctx context.Context, d inventory.Record, snap Snapshot, addrs Addresses, policy Policy) (outcome Outcome) {
	outcome.Record = d
	defer func() {
		if r := recover(); r != nil {
			outcome.Result = ActionResult{Action: Failed, Err: fmt.Errorf("panic: %v", r)}
			slog.Error("Record processing panicked", "record", d.String(), "panic", r)
		}
		e.metrics.IncAction(outcome.Result.Action.String())
	}()

	res := Resolve(d, snap)
	outcome.Classification = Classify(d, res, addrs)
	e.metrics.IncClassification(outcome.Classification.Verdict.String())

	c := outcome.Classification
	switch c.Verdict {
	case Invalid:
		slog.Warn("Record invalid", "record", d.String(), "reason", c.Reason)
	case Outdated:
		slog.Info("Record outdated", "record", d.String(), "current", c.Current, "desired", c.Desired)
	default:
		slog.Debug("Record matched", "record", d.String(), "value", c.Current)
	}

	outcome.Result = e.applier.Apply(ctx, d, res, c, policy)
	return outcome
}

// TakeSnapshot lists zones once, then records of every zone the inventory
// refers to. Any failure fails the whole snapshot so nothing is classified
// against a partial view.
func TakeSnapshot(ctx context.Context, p provider.Provider, inv inventory.Inventory) (Snapshot, error) {
	zones, err := p.ListZones(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Zones: zones, Records: make(map[string][]provider.Record)}
	for _, id := range ReferencedZones(inv, zones) {
		records, err := p.ListRecords(ctx, id)
		if err != nil {
			return Snapshot{}, fmt.Errorf("zone %s: %w", id, err)
		}
		snap.Records[id] = records
	}
	return snap, nil
}

// addresses resolves only the families that some record needs.
func (e *Engine) addresses(ctx context.Context, inv inventory.Inventory) Addresses {
	var addrs Addresses
	needV4, needV6 := inv.Needs()
	if needV4 {
		addrs.V4 = e.lookup(ctx, "ipv4", e.resolver.IPv4)
	}
	if needV6 {
		addrs.V6 = e.lookup(ctx, "ipv6", e.resolver.IPv6)
	}
	return addrs
}

func (e *Engine) lookup(ctx context.Context, family string, fn func(context.Context) (netip.Addr, error)) netip.Addr {
	addr, err := fn(ctx)
	e.metrics.IncIPLookup(family, err == nil)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Public address unavailable", "family", family, "error", err)
		}
		return netip.Addr{}
	}
	slog.Debug("Resolved public address", "family", family, "address", addr)
	return addr
}
