package reconcile

import (
	"time"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
)

// Snapshot is the provider state read once at the start of a cycle.
type Snapshot struct {
	Zones   []provider.Zone
	Records map[string][]provider.Record // by zone id
}

// Reason explains why a declared record is Invalid.
type Reason string

const (
	ReasonZoneNotFound       Reason = "ZoneNotFound"
	ReasonAmbiguousZone      Reason = "AmbiguousZone"
	ReasonRecordNotFound     Reason = "RecordNotFound"
	ReasonAmbiguousRecord    Reason = "AmbiguousRecord"
	ReasonTargetMismatch     Reason = "TargetMismatch"
	ReasonAddressUnavailable Reason = "AddressUnavailable"
)

// Prunable reports whether an Invalid record with this reason may be dropped
// from the inventory. Missing public addresses are transient and never are.
func (r Reason) Prunable() bool {
	return r != "" && r != ReasonAddressUnavailable
}

// Resolution is the provider zone and record a declared record refers to.
// Reason is empty when both were found.
type Resolution struct {
	Zone   provider.Zone
	Record provider.Record
	Reason Reason
}

func (r Resolution) Resolved() bool {
	return r.Reason == ""
}

type Verdict int

const (
	Matched Verdict = iota + 1
	Outdated
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Matched:
		return "matched"
	case Outdated:
		return "outdated"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

type Classification struct {
	Verdict Verdict
	Current string // provider value as stored
	Desired string // canonical desired address
	Reason  Reason // set when Invalid
}

type Action int

const (
	NoOp Action = iota + 1
	Updated
	Failed
	Pruned
	Skipped
)

func (a Action) String() string {
	switch a {
	case NoOp:
		return "noop"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	case Pruned:
		return "pruned"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

type ActionResult struct {
	Action Action
	Err    error
}

type Outcome struct {
	Record         inventory.Record
	Classification Classification
	Result         ActionResult
}

type Counts struct {
	Matched  int `json:"matched"`
	Outdated int `json:"outdated"`
	Invalid  int `json:"invalid"`
	Updated  int `json:"updated"`
	Pruned   int `json:"pruned"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

func (c *Counts) add(o Outcome) {
	switch o.Classification.Verdict {
	case Matched:
		c.Matched++
	case Outdated:
		c.Outdated++
	case Invalid:
		c.Invalid++
	}
	switch o.Result.Action {
	case Updated:
		c.Updated++
	case Pruned:
		c.Pruned++
	case Failed:
		c.Failed++
	case Skipped:
		c.Skipped++
	}
}

// Report is the result of one reconciliation cycle. Err is set when the cycle
// could not run at all or its inventory could not be saved.
type Report struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []Outcome
	Counts    Counts
	Cancelled bool
	Err       error
}

// Unresolved counts records left Invalid or Failed by the cycle.
func (r Report) Unresolved() int {
	return r.Counts.Invalid - r.Counts.Pruned + r.Counts.Failed
}

// Policy selects which corrective actions a cycle may take.
type Policy struct {
	Update      bool
	Prune       bool
	ForceUpdate bool
	ForcePrune  bool
	Persist     bool // save the inventory after pruning
}
