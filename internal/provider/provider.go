package provider

import (
	"context"
)

// Provider is the read/update surface of a DNS provider account.
type Provider interface {
	ListZones(ctx context.Context) ([]Zone, error)
	ListRecords(ctx context.Context, zoneID string) ([]Record, error)
	UpdateRecord(ctx context.Context, zoneID, recordID, content string) error
}

// Verifier checks that the configured credentials are usable.
type Verifier interface {
	Verify(ctx context.Context) (string, error)
}

type RecordType string

const (
	TypeA    RecordType = "A"
	TypeAAAA RecordType = "AAAA"
)

func (t RecordType) Valid() bool {
	return t == TypeA || t == TypeAAAA
}

type Zone struct {
	ID   string
	Name string
}

type Record struct {
	ID       string
	ZoneID   string
	ZoneName string
	Name     string
	Type     RecordType
	Content  string
}
