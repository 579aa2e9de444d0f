package reconcile

import (
	"strings"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
)

const apex = "@"

// Resolve finds the provider zone and record a declared record refers to.
// Identifiers are matched exactly before names are tried.
func Resolve(d inventory.Record, snap Snapshot) Resolution {
	zone, reason := matchZone(d.Zone, snap.Zones)
	if reason != "" {
		return Resolution{Reason: reason}
	}

	var candidates []provider.Record
	for _, r := range snap.Records[zone.ID] {
		if r.Type == d.Type {
			candidates = append(candidates, r)
		}
	}

	record, reason := matchRecord(d.Record, zone, candidates)
	if reason != "" {
		return Resolution{Zone: zone, Reason: reason}
	}
	return Resolution{Zone: zone, Record: record}
}

func matchZone(ref string, zones []provider.Zone) (provider.Zone, Reason) {
	for _, z := range zones {
		if z.ID == ref {
			return z, ""
		}
	}

	var found []provider.Zone
	for _, z := range zones {
		if sameName(z.Name, ref) {
			found = append(found, z)
		}
	}
	switch len(found) {
	case 0:
		return provider.Zone{}, ReasonZoneNotFound
	case 1:
		return found[0], ""
	}
	return provider.Zone{}, ReasonAmbiguousZone
}

func matchRecord(ref string, zone provider.Zone, records []provider.Record) (provider.Record, Reason) {
	for _, r := range records {
		if r.ID == ref {
			return r, ""
		}
	}

	fqdn := qualify(ref, zone.Name)
	var found []provider.Record
	for _, r := range records {
		if sameName(r.Name, fqdn) {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return provider.Record{}, ReasonRecordNotFound
	case 1:
		return found[0], ""
	}
	return provider.Record{}, ReasonAmbiguousRecord
}

// qualify turns a record reference into a fully qualified name within zone.
// "@" is the zone apex; names already inside the zone are kept as is.
func qualify(ref, zone string) string {
	ref = strings.TrimSuffix(ref, ".")
	zone = strings.TrimSuffix(zone, ".")
	if ref == apex || sameName(ref, zone) {
		return zone
	}
	if len(ref) > len(zone) && sameName(ref[len(ref)-len(zone)-1:], "."+zone) {
		return ref
	}
	return ref + "." + zone
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// ReferencedZones returns the ids of snapshot zones that any declared record
// can resolve to. Records are only fetched for these.
func ReferencedZones(inv inventory.Inventory, zones []provider.Zone) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, d := range inv.Records {
		z, reason := matchZone(d.Zone, zones)
		if reason != "" || seen[z.ID] {
			continue
		}
		seen[z.ID] = true
		ids = append(ids, z.ID)
	}
	return ids
}
