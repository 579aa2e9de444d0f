package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/evanofslack/cddns/internal/filter"
	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/prompt"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/spf13/cobra"
)

// InventoryOptions holds flags shared by every inventory subcommand. Flags
// given on the command line override the config file.
type InventoryOptions struct {
	*RootOptions
	Path        string
	ForceUpdate bool
	ForcePrune  bool
	IntervalMS  int
}

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Build, inspect and reconcile the record inventory",
	}
	cmd.PersistentFlags().StringVarP(&opts.Path, "path", "p", "", "inventory file (default from config)")
	cmd.PersistentFlags().BoolVar(&opts.ForceUpdate, "force-update", false, "update outdated records without asking")
	cmd.PersistentFlags().BoolVar(&opts.ForcePrune, "force-prune", false, "prune invalid records without asking")
	cmd.PersistentFlags().IntVar(&opts.IntervalMS, "interval", 0, "watch interval in milliseconds (default from config)")

	cmd.AddCommand(newInventoryBuildCommand(opts))
	cmd.AddCommand(newInventoryShowCommand(opts))
	cmd.AddCommand(newCycleCommand(opts, modeCheck))
	cmd.AddCommand(newCycleCommand(opts, modeUpdate))
	cmd.AddCommand(newCycleCommand(opts, modePrune))
	cmd.AddCommand(newCycleCommand(opts, modeRun))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	return cmd
}

// apply copies explicitly set flags into the loaded config.
func (opts *InventoryOptions) apply(cmd *cobra.Command) error {
	cfg := opts.Config
	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.Inventory.Path = opts.Path
	}
	if flags.Changed("force-update") {
		cfg.Inventory.ForceUpdate = opts.ForceUpdate
	}
	if flags.Changed("force-prune") {
		cfg.Inventory.ForcePrune = opts.ForcePrune
	}
	if flags.Changed("interval") {
		cfg.Inventory.WatchIntervalMS = opts.IntervalMS
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}
	return nil
}

func (opts *InventoryOptions) load() (*inventory.FileStore, inventory.Inventory, error) {
	store := inventory.NewFileStore(opts.Config.Inventory.Path)
	inv, err := store.Load()
	if err != nil {
		return nil, inventory.Inventory{}, WrapExitError(ExitCommandError, "failed to load inventory", err)
	}
	return store, inv, nil
}

func newInventoryBuildCommand(opts *InventoryOptions) *cobra.Command {
	var (
		stdout bool
		clean  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Pick records interactively and write the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd); err != nil {
				return err
			}
			term := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr())
			inv, notes, err := buildInventory(cmd.Context(), opts, term)
			if err != nil {
				return err
			}
			if clean {
				notes = nil
			}

			if stdout {
				inv.GeneratedAt = time.Now().UTC().Truncate(time.Second)
				return inventory.Encode(cmd.OutOrStdout(), inv, notes)
			}

			path := opts.Config.Inventory.Path
			if _, err := os.Stat(path); err == nil {
				if !term.ConfirmDefault(fmt.Sprintf("%s exists, overwrite?", path), false) {
					return NewExitError(ExitFailure, "inventory not saved")
				}
			} else if !errors.Is(err, fs.ErrNotExist) {
				return WrapExitError(ExitCommandError, "failed to check inventory path", err)
			}

			store := inventory.NewFileStore(path)
			store.Notes = notes
			if err := store.Save(inv); err != nil {
				return WrapExitError(ExitCommandError, "failed to save inventory", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d record(s) to %s\n", len(inv.Records), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the inventory instead of saving it")
	cmd.Flags().BoolVar(&clean, "clean", false, "omit name comments")
	return cmd
}

// buildInventory walks the operator through zones and records. Picked
// records are stored by identifier with their names as notes.
func buildInventory(ctx context.Context, opts *InventoryOptions, term *prompt.Terminal) (inventory.Inventory, inventory.Annotations, error) {
	cfg := opts.Config
	zoneFilter, err := filter.New(cfg.List.IncludeZones, cfg.List.IgnoreZones)
	if err != nil {
		return inventory.Inventory{}, nil, WrapExitError(ExitCommandError, "invalid zone filter", err)
	}
	recordFilter, err := filter.New(cfg.List.IncludeRecords, cfg.List.IgnoreRecords)
	if err != nil {
		return inventory.Inventory{}, nil, WrapExitError(ExitCommandError, "invalid record filter", err)
	}
	client, err := newClient(cfg, metrics.New(false))
	if err != nil {
		return inventory.Inventory{}, nil, WrapExitError(ExitCommandError, "failed to create DNS client", err)
	}
	l := &lister{client: client, zones: zoneFilter, records: recordFilter}

	zones, err := l.Zones(ctx)
	if err != nil {
		return inventory.Inventory{}, nil, WrapExitError(ExitFailure, "failed to list zones", err)
	}
	if len(zones) == 0 {
		return inventory.Inventory{}, nil, NewExitError(ExitFailure, "no editable zones found")
	}

	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = z.Name
	}
	picked, err := term.Select("Zones to manage", names)
	if err != nil {
		return inventory.Inventory{}, nil, WrapExitError(ExitCommandError, "no zones selected", err)
	}

	var inv inventory.Inventory
	notes := inventory.Annotations{}
	for _, zi := range picked {
		zone := zones[zi]
		records, err := l.Records(ctx, zone)
		if err != nil {
			return inventory.Inventory{}, nil, WrapExitError(ExitFailure, fmt.Sprintf("failed to list records of %s", zone.Name), err)
		}
		if len(records) == 0 {
			slog.Info("Zone has no A or AAAA records", "zone", zone.Name)
			continue
		}

		labels := make([]string, len(records))
		for i, r := range records {
			labels[i] = fmt.Sprintf("%-4s %s  %s", r.Type, r.Name, r.Content)
		}
		chosen, err := term.Select(fmt.Sprintf("Records of %s to manage", zone.Name), labels)
		if err != nil {
			return inventory.Inventory{}, nil, WrapExitError(ExitCommandError, "no records selected", err)
		}
		for _, ri := range chosen {
			r := records[ri]
			inv.Records = append(inv.Records, inventory.Record{
				Zone:   zone.ID,
				Record: r.ID,
				Type:   r.Type,
				Target: inventory.CurrentIP,
			})
			notes[zone.ID] = zone.Name
			notes[r.ID] = r.Name
		}
	}
	if len(inv.Records) == 0 {
		return inventory.Inventory{}, nil, NewExitError(ExitFailure, "no records selected")
	}
	return inv, notes, nil
}

func newInventoryShowCommand(opts *InventoryOptions) *cobra.Command {
	var clean bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the inventory, annotated with names or identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd); err != nil {
				return err
			}
			_, inv, err := opts.load()
			if err != nil {
				return err
			}

			var notes inventory.Annotations
			if !clean && opts.Config.Token != "" {
				if client, err := newClient(opts.Config, metrics.New(false)); err == nil {
					notes, err = annotations(cmd.Context(), client, inv)
					if err != nil {
						slog.Warn("Failed to annotate inventory", "error", err)
					}
				}
			}
			return inventory.Encode(cmd.OutOrStdout(), inv, notes)
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "omit annotations and skip the provider lookup")
	return cmd
}

// annotations pairs every resolvable zone and record reference with its
// counterpart: identifiers get names and names get identifiers.
func annotations(ctx context.Context, p provider.Provider, inv inventory.Inventory) (inventory.Annotations, error) {
	snap, err := reconcile.TakeSnapshot(ctx, p, inv)
	if err != nil {
		return nil, err
	}
	notes := inventory.Annotations{}
	for _, d := range inv.Records {
		res := reconcile.Resolve(d, snap)
		if res.Zone.ID != "" {
			notes[d.Zone] = counterpart(d.Zone, res.Zone.ID, res.Zone.Name)
		}
		if res.Resolved() {
			notes[inventory.RecordKey(d.Zone, d.Record)] = counterpart(d.Record, res.Record.ID, res.Record.Name)
		}
	}
	return notes, nil
}

func counterpart(ref, id, name string) string {
	if ref == id {
		return name
	}
	return id
}

func newHistoryCommand(opts *InventoryOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show summaries of recent cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Config.StatePath == "" {
				return NewExitError(ExitCommandError, "state_path is not configured")
			}
			history := openHistory(opts.Config, metrics.New(false))
			if history == nil {
				return NewExitError(ExitCommandError, "failed to open cycle history")
			}
			defer history.Close()

			summaries, err := history.LoadSummaries(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load cycle history", err)
			}
			return RenderHistory(cmd.OutOrStdout(), summaries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to show, 0 for all")
	return cmd
}
