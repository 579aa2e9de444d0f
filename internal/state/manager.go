package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/reconcile"
)

const (
	cyclePrefix   = "cycle:"
	defaultRetain = 500
)

// Summary is the persisted form of a cycle report.
type Summary struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"duration"`
	Counts    reconcile.Counts `json:"counts"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func FromReport(r reconcile.Report) Summary {
	s := Summary{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Counts:    r.Counts,
		Cancelled: r.Cancelled,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Manager keeps a bounded history of cycle summaries.
type Manager interface {
	SaveSummary(ctx context.Context, s Summary) error
	LoadSummaries(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

type badgerManager struct {
	db      *badger.DB
	metrics *metrics.Metrics
	retain  int
}

func New(path string, metrics *metrics.Metrics) (Manager, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	m := &badgerManager{db: db, metrics: metrics, retain: defaultRetain}
	return m, nil
}

// LoadSummaries returns up to limit summaries, newest first. Keys sort by
// their UUIDv7 id, which is time ordered.
func (m *badgerManager) LoadSummaries(ctx context.Context, limit int) ([]Summary, error) {
	var summaries []Summary

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(cyclePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(cyclePrefix), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(summaries) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var s Summary
				if err := json.Unmarshal(val, &s); err != nil {
					return err
				}
				summaries = append(summaries, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	m.metrics.IncBadgerRequest("read", err == nil)
	return summaries, err
}

// SaveSummary stores s and drops the oldest entries beyond the retention limit.
func (m *badgerManager) SaveSummary(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		m.metrics.IncBadgerRequest("update", false)
		return err
	}

	txn := m.db.NewTransaction(true)
	defer txn.Discard()

	// First, get all existing keys to handle retention
	var existing [][]byte
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	prefix := []byte(cyclePrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		existing = append(existing, it.Item().KeyCopy(nil))
	}
	it.Close()

	if excess := len(existing) + 1 - m.retain; excess > 0 {
		for _, key := range existing[:excess] {
			if err := txn.Delete(key); err != nil {
				m.metrics.IncBadgerRequest("delete", false)
				return err
			}
		}
	}

	if err := txn.Set([]byte(cyclePrefix+s.ID), data); err != nil {
		m.metrics.IncBadgerRequest("update", false)
		return err
	}
	err = txn.Commit()
	m.metrics.IncBadgerRequest("update", err == nil)
	return err
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}
