package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
)

// Confirmer asks whether a corrective action should go ahead.
type Confirmer interface {
	// Confirm returns false when ctx is done before an answer arrives.
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Always answers every prompt with the same value.
type Always bool

func (a Always) Confirm(context.Context, string) bool { return bool(a) }

// Applier carries out the action a classification calls for.
type Applier struct {
	provider provider.Provider
	confirm  Confirmer
	timeout  time.Duration
}

func NewApplier(p provider.Provider, c Confirmer, timeout time.Duration) *Applier {
	if c == nil {
		c = Always(false)
	}
	return &Applier{provider: p, confirm: c, timeout: timeout}
}

// Apply never prunes anything itself: a Pruned result only marks the
// declared record for removal by the caller.
func (a *Applier) Apply(ctx context.Context, d inventory.Record, res Resolution, c Classification, policy Policy) ActionResult {
	switch c.Verdict {
	case Matched:
		return ActionResult{Action: NoOp}
	case Outdated:
		return a.update(ctx, d, res, c, policy)
	case Invalid:
		return a.prune(ctx, d, c, policy)
	}
	return ActionResult{Action: Failed, Err: fmt.Errorf("unknown verdict %d", c.Verdict)}
}

func (a *Applier) update(ctx context.Context, d inventory.Record, res Resolution, c Classification, policy Policy) ActionResult {
	if !policy.Update {
		return ActionResult{Action: Skipped}
	}
	prompt := fmt.Sprintf("Update %s from %s to %s?", d, c.Current, c.Desired)
	if !policy.ForceUpdate && !a.confirm.Confirm(ctx, prompt) {
		slog.Info("Update declined", "record", d.String())
		return ActionResult{Action: Skipped}
	}
	if ctx.Err() != nil {
		slog.Info("Update not started, cycle cancelled", "record", d.String())
		return ActionResult{Action: Skipped}
	}

	// A started write finishes even if the caller is cancelled meanwhile.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if err := a.provider.UpdateRecord(ctx, res.Zone.ID, res.Record.ID, c.Desired); err != nil {
		err = provider.Wrap("update record", err)
		slog.Error("Update failed", "record", d.String(), "error", err)
		return ActionResult{Action: Failed, Err: err}
	}
	slog.Info("Updated record", "record", d.String(), "from", c.Current, "to", c.Desired)
	return ActionResult{Action: Updated}
}

func (a *Applier) prune(ctx context.Context, d inventory.Record, c Classification, policy Policy) ActionResult {
	if !policy.Prune || !c.Reason.Prunable() {
		return ActionResult{Action: Skipped}
	}
	prompt := fmt.Sprintf("Prune %s from the inventory (%s)?", d, c.Reason)
	if !policy.ForcePrune && !a.confirm.Confirm(ctx, prompt) {
		slog.Info("Prune declined", "record", d.String())
		return ActionResult{Action: Skipped}
	}
	if ctx.Err() != nil {
		slog.Info("Prune not applied, cycle cancelled", "record", d.String())
		return ActionResult{Action: Skipped}
	}
	slog.Info("Pruning record", "record", d.String(), "reason", c.Reason)
	return ActionResult{Action: Pruned}
}
