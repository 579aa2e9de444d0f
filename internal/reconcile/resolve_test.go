package reconcile

import (
	"testing"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/stretchr/testify/assert"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Zones: []provider.Zone{
			{ID: "z1", Name: "example.com"},
			{ID: "z2", Name: "dup.example"},
			{ID: "z3", Name: "dup.example"},
		},
		Records: map[string][]provider.Record{
			"z1": {
				{ID: "r1", Name: "home.example.com", Type: provider.TypeA, Content: "203.0.113.5"},
				{ID: "r2", Name: "home.example.com", Type: provider.TypeAAAA, Content: "2001:db8::5"},
				{ID: "r3", Name: "example.com", Type: provider.TypeA, Content: "203.0.113.1"},
				{ID: "r4", Name: "multi.example.com", Type: provider.TypeA, Content: "203.0.113.2"},
				{ID: "r5", Name: "multi.example.com", Type: provider.TypeA, Content: "203.0.113.3"},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		declared   inventory.Record
		wantRecord string
		wantReason Reason
	}{
		{
			name:       "ids",
			declared:   inventory.Record{Zone: "z1", Record: "r1", Type: provider.TypeA},
			wantRecord: "r1",
		},
		{
			name:       "short name",
			declared:   inventory.Record{Zone: "example.com", Record: "home", Type: provider.TypeA},
			wantRecord: "r1",
		},
		{
			name:       "fqdn with kind filter",
			declared:   inventory.Record{Zone: "Example.com", Record: "home.example.com.", Type: provider.TypeAAAA},
			wantRecord: "r2",
		},
		{
			name:       "apex",
			declared:   inventory.Record{Zone: "example.com", Record: "@", Type: provider.TypeA},
			wantRecord: "r3",
		},
		{
			name:       "apex by zone name",
			declared:   inventory.Record{Zone: "z1", Record: "example.com", Type: provider.TypeA},
			wantRecord: "r3",
		},
		{
			name:       "zone not found",
			declared:   inventory.Record{Zone: "ghost.example", Record: "home", Type: provider.TypeA},
			wantReason: ReasonZoneNotFound,
		},
		{
			name:       "ambiguous zone",
			declared:   inventory.Record{Zone: "dup.example", Record: "home", Type: provider.TypeA},
			wantReason: ReasonAmbiguousZone,
		},
		{
			name:       "id beats ambiguous name",
			declared:   inventory.Record{Zone: "z1", Record: "r4", Type: provider.TypeA},
			wantRecord: "r4",
		},
		{
			name:       "ambiguous record",
			declared:   inventory.Record{Zone: "example.com", Record: "multi", Type: provider.TypeA},
			wantReason: ReasonAmbiguousRecord,
		},
		{
			name:       "record not found",
			declared:   inventory.Record{Zone: "example.com", Record: "away", Type: provider.TypeA},
			wantReason: ReasonRecordNotFound,
		},
		{
			name:       "record of other kind is not a match",
			declared:   inventory.Record{Zone: "example.com", Record: "@", Type: provider.TypeAAAA},
			wantReason: ReasonRecordNotFound,
		},
	}

	snap := testSnapshot()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.declared, snap)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantReason == "", res.Resolved())
			assert.Equal(t, tt.wantRecord, res.Record.ID)
		})
	}
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "home.example.com", qualify("home", "example.com"))
	assert.Equal(t, "home.example.com", qualify("home.example.com", "example.com"))
	assert.Equal(t, "example.com", qualify("@", "example.com."))
	assert.Equal(t, "notexample.com.example.com", qualify("notexample.com", "example.com"))
}

func TestReferencedZones(t *testing.T) {
	inv := inventory.Inventory{Records: []inventory.Record{
		{Zone: "example.com"},
		{Zone: "z1"},
		{Zone: "dup.example"},
		{Zone: "ghost.example"},
	}}
	assert.Equal(t, []string{"z1"}, ReferencedZones(inv, testSnapshot().Zones))
}
