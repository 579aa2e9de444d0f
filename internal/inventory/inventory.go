package inventory

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/evanofslack/cddns/internal/provider"
)

// CurrentIP is the target sentinel for "this machine's public address".
const CurrentIP = "use-current-ip"

var ErrNotFound = errors.New("inventory not found")

// Record is one declared DNS record. Zone and Record hold either a provider
// identifier or a name.
type Record struct {
	Zone   string              `yaml:"zone"`
	Record string              `yaml:"record"`
	Type   provider.RecordType `yaml:"kind"`
	Target string              `yaml:"target,omitempty"`
}

func (r Record) UsesCurrentIP() bool {
	return r.Target == "" || r.Target == CurrentIP
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%s (%s)", r.Zone, r.Record, r.Type)
}

func (r Record) Validate() error {
	if r.Zone == "" {
		return errors.New("zone is required")
	}
	if r.Record == "" {
		return errors.New("record is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unsupported kind %q", r.Type)
	}
	if !r.UsesCurrentIP() {
		if _, err := netip.ParseAddr(r.Target); err != nil {
			return fmt.Errorf("target: %w", err)
		}
	}
	return nil
}

type Inventory struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Records     []Record  `yaml:"records"`
}

func (inv Inventory) Validate() error {
	var errs []error
	for i, r := range inv.Records {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Remove drops the records at the given positions.
func (inv *Inventory) Remove(indices ...int) {
	if len(indices) == 0 {
		return
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := inv.Records[:0:0]
	for i, r := range inv.Records {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	inv.Records = kept
}

func (inv Inventory) Clone() Inventory {
	inv.Records = slices.Clone(inv.Records)
	return inv
}

// Needs reports which address families sentinel records require.
func (inv Inventory) Needs() (v4, v6 bool) {
	for _, r := range inv.Records {
		if !r.UsesCurrentIP() {
			continue
		}
		switch r.Type {
		case provider.TypeA:
			v4 = true
		case provider.TypeAAAA:
			v6 = true
		}
	}
	return v4, v6
}
