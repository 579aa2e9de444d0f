package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/state"
)

// RenderReport writes a human readable cycle report.
func RenderReport(w io.Writer, r reconcile.Report) error {
	fmt.Fprintf(w, "Cycle %s started %s took %s\n", r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	for _, o := range r.Outcomes {
		verdict := strings.ToUpper(o.Classification.Verdict.String())
		fmt.Fprintf(w, "  %-8s %-7s %s  %s\n", verdict, o.Result.Action, o.Record, outcomeDetail(o))
	}
	if r.Cancelled {
		fmt.Fprintln(w, "  cycle cancelled")
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  cycle failed: %v\n", r.Err)
	}
	_, err := fmt.Fprintln(w, countsLine(r.Counts))
	return err
}

func outcomeDetail(o reconcile.Outcome) string {
	c := o.Classification
	var detail string
	switch c.Verdict {
	case reconcile.Matched:
		detail = c.Current
	case reconcile.Outdated:
		detail = c.Current + " -> " + c.Desired
	default:
		detail = string(c.Reason)
	}
	if o.Result.Err != nil {
		detail += fmt.Sprintf(" (%v)", o.Result.Err)
	}
	return detail
}

func countsLine(c reconcile.Counts) string {
	return fmt.Sprintf("matched=%d outdated=%d invalid=%d updated=%d pruned=%d failed=%d skipped=%d",
		c.Matched, c.Outdated, c.Invalid, c.Updated, c.Pruned, c.Failed, c.Skipped)
}

type reportJSON struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMS int64            `json:"duration_ms"`
	Counts     reconcile.Counts `json:"counts"`
	Unresolved int              `json:"unresolved"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Error      string           `json:"error,omitempty"`
	Outcomes   []outcomeJSON    `json:"outcomes"`
}

type outcomeJSON struct {
	Zone    string `json:"zone"`
	Record  string `json:"record"`
	Kind    string `json:"kind"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason,omitempty"`
	Current string `json:"current,omitempty"`
	Desired string `json:"desired,omitempty"`
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
}

// RenderReportJSON writes the report as a single JSON document.
func RenderReportJSON(w io.Writer, r reconcile.Report) error {
	out := reportJSON{
		ID:         r.ID,
		StartedAt:  r.StartedAt.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Counts:     r.Counts,
		Unresolved: r.Unresolved(),
		Cancelled:  r.Cancelled,
		Outcomes:   make([]outcomeJSON, 0, len(r.Outcomes)),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, o := range r.Outcomes {
		oj := outcomeJSON{
			Zone:    o.Record.Zone,
			Record:  o.Record.Record,
			Kind:    string(o.Record.Type),
			Verdict: o.Classification.Verdict.String(),
			Reason:  string(o.Classification.Reason),
			Current: o.Classification.Current,
			Desired: o.Classification.Desired,
			Action:  o.Result.Action.String(),
		}
		if o.Result.Err != nil {
			oj.Error = o.Result.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, oj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// RenderHistory writes one line per stored cycle summary.
func RenderHistory(w io.Writer, summaries []state.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No cycles recorded")
		return err
	}
	for _, s := range summaries {
		line := fmt.Sprintf("%s  %s  %8s  %s", s.ID, s.StartedAt.UTC().Format(time.RFC3339), s.Duration.Round(time.Millisecond), countsLine(s.Counts))
		switch {
		case s.Cancelled:
			line += "  cancelled"
		case s.Error != "":
			line += "  error: " + s.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderZone writes a zone heading followed by its records, if any.
func RenderZone(w io.Writer, z provider.Zone, records []provider.Record) {
	fmt.Fprintf(w, "%s (%s)\n", z.Name, z.ID)
	for _, r := range records {
		fmt.Fprintf(w, "  %-4s %s  %s  (%s)\n", r.Type, r.Name, r.Content, r.ID)
	}
}
