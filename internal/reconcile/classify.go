package reconcile

import (
	"net/netip"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
)

// Addresses holds the public addresses found for a cycle. A zero value
// means the family could not be determined.
type Addresses struct {
	V4 netip.Addr
	V6 netip.Addr
}

func (a Addresses) For(t provider.RecordType) netip.Addr {
	if t == provider.TypeAAAA {
		return a.V6
	}
	return a.V4
}

// Classify compares a declared record against its resolved provider record.
func Classify(d inventory.Record, res Resolution, addrs Addresses) Classification {
	if !res.Resolved() {
		return Classification{Verdict: Invalid, Reason: res.Reason}
	}

	desired, reason := desiredValue(d, addrs)
	if reason != "" {
		return Classification{Verdict: Invalid, Current: res.Record.Content, Reason: reason}
	}

	current := res.Record.Content
	if canonical(current) == desired {
		return Classification{Verdict: Matched, Current: current, Desired: desired}
	}
	return Classification{Verdict: Outdated, Current: current, Desired: desired}
}

func desiredValue(d inventory.Record, addrs Addresses) (string, Reason) {
	if d.UsesCurrentIP() {
		addr := addrs.For(d.Type)
		if !addr.IsValid() {
			return "", ReasonAddressUnavailable
		}
		return addr.String(), ""
	}

	addr, err := netip.ParseAddr(d.Target)
	if err != nil || !fitsType(addr, d.Type) {
		return "", ReasonTargetMismatch
	}
	return addr.Unmap().String(), ""
}

func fitsType(addr netip.Addr, t provider.RecordType) bool {
	switch t {
	case provider.TypeA:
		return addr.Unmap().Is4()
	case provider.TypeAAAA:
		return addr.Is6() && !addr.Is4In6()
	}
	return false
}

// canonical renders an address in its canonical text form. Values that do
// not parse are returned unchanged.
func canonical(s string) string {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return s
	}
	return addr.String()
}
