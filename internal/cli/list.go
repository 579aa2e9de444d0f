package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/evanofslack/cddns/internal/filter"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/spf13/cobra"
)

// ListOptions narrows listings to one zone or record.
type ListOptions struct {
	*RootOptions
	Zone   string
	Record string
}

// NewListCommand creates the list command group. Without a subcommand it
// lists zones with their records.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List editable zones and their A/AAAA records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, true)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.Zone, "zone", "z", "", "only this zone (name or id)")
	cmd.PersistentFlags().StringVarP(&opts.Record, "record", "r", "", "only this record (name or id)")

	cmd.AddCommand(&cobra.Command{
		Use:   "zones",
		Short: "List editable zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "records",
		Short: "List A/AAAA records of editable zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, true)
		},
	})
	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, withRecords bool) error {
	cfg := opts.Config
	zoneFilter, err := filter.New(cfg.List.IncludeZones, cfg.List.IgnoreZones)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid zone filter", err)
	}
	recordFilter, err := filter.New(cfg.List.IncludeRecords, cfg.List.IgnoreRecords)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record filter", err)
	}

	client, err := newClient(cfg, metrics.New(false))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create DNS client", err)
	}

	l := &lister{client: client, zones: zoneFilter, records: recordFilter, zone: opts.Zone, record: opts.Record}
	return l.write(cmd.Context(), cmd.OutOrStdout(), withRecords)
}

type lister struct {
	client  provider.Provider
	zones   *filter.Filter
	records *filter.Filter
	zone    string
	record  string
}

// Zones returns the zones that pass the filter and the --zone selector.
func (l *lister) Zones(ctx context.Context) ([]provider.Zone, error) {
	all, err := l.client.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	var zones []provider.Zone
	for _, z := range all {
		if l.zone != "" && !selects(l.zone, z.ID, z.Name) {
			continue
		}
		if !l.zones.Allow(z.ID, z.Name) {
			continue
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// Records returns the records of zone that pass the filter and the --record
// selector.
func (l *lister) Records(ctx context.Context, zone provider.Zone) ([]provider.Record, error) {
	all, err := l.client.ListRecords(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	var records []provider.Record
	for _, r := range all {
		if l.record != "" && !selects(l.record, r.ID, r.Name, strings.TrimSuffix(r.Name, "."+zone.Name)) {
			continue
		}
		if !l.records.Allow(r.ID, r.Name) {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (l *lister) write(ctx context.Context, w io.Writer, withRecords bool) error {
	zones, err := l.Zones(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list zones", err)
	}
	if len(zones) == 0 {
		fmt.Fprintln(w, "No zones found")
		return nil
	}
	for _, z := range zones {
		var records []provider.Record
		if withRecords {
			if records, err = l.Records(ctx, z); err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("failed to list records of %s", z.Name), err)
			}
		}
		RenderZone(w, z, records)
	}
	return nil
}

func selects(ref string, values ...string) bool {
	for _, v := range values {
		if v == ref || strings.EqualFold(strings.TrimSuffix(v, "."), strings.TrimSuffix(ref, ".")) {
			return true
		}
	}
	return false
}
