package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRunner takes durations[i] for cycle i and cancels after the last one.
type fakeRunner struct {
	clock     *fakeClock
	durations []time.Duration
	errs      []error
	cancel    context.CancelFunc

	starts   []time.Time
	seen     [][]inventory.Record
	inFlight int
	overlaps int
}

func (r *fakeRunner) RunCycle(ctx context.Context, inv *inventory.Inventory, policy reconcile.Policy) reconcile.Report {
	r.inFlight++
	if r.inFlight > 1 {
		r.overlaps++
	}
	defer func() { r.inFlight-- }()

	i := len(r.starts)
	r.starts = append(r.starts, r.clock.Now())
	r.seen = append(r.seen, append([]inventory.Record(nil), inv.Records...))

	report := reconcile.Report{ID: "cycle", StartedAt: r.clock.Now()}
	if i < len(r.durations) {
		r.clock.Advance(r.durations[i])
	}
	if i < len(r.errs) {
		report.Err = r.errs[i]
	}
	if i >= len(r.durations)-1 {
		r.cancel()
	}
	return report
}

func newTestScheduler(runner *fakeRunner, store inventory.Store, inv inventory.Inventory, opts Options) (*Scheduler, *[]time.Duration) {
	s := New(runner, store, inv, opts)
	s.now = runner.clock.Now
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		runner.clock.Advance(d)
		return nil
	}
	return s, &sleeps
}

func TestSchedulerTiming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{
		clock:     clock,
		durations: []time.Duration{2 * time.Second, 45 * time.Second, 30 * time.Second, time.Second},
		cancel:    cancel,
	}
	s, sleeps := newTestScheduler(runner, nil, inventory.Inventory{}, Options{Interval: 30 * time.Second})

	require.NoError(t, s.Run(ctx))
	require.Len(t, runner.starts, 4)

	// 2s cycle waits 28s, overrunning cycles start the next one immediately.
	assert.Equal(t, []time.Duration{28 * time.Second, 0, 0, 29 * time.Second}, *sleeps)
	assert.Equal(t, 30*time.Second, runner.starts[1].Sub(runner.starts[0]))
	assert.Equal(t, 45*time.Second, runner.starts[2].Sub(runner.starts[1]))
	assert.Equal(t, 30*time.Second, runner.starts[3].Sub(runner.starts[2]))
	assert.Zero(t, runner.overlaps)
}

func TestSchedulerContinuesAfterFailedCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{
		clock:     clock,
		durations: []time.Duration{time.Second, time.Second, time.Second},
		errs:      []error{errors.New("snapshot: list zones rejected: invalid token")},
		cancel:    cancel,
	}
	s, _ := newTestScheduler(runner, nil, inventory.Inventory{}, Options{Interval: time.Minute})

	assert.NoError(t, s.Run(ctx))
	assert.Len(t, runner.starts, 3)
}

func TestSchedulerStopsWhenCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{clock: &fakeClock{}, cancel: func() {}}
	s, _ := newTestScheduler(runner, nil, inventory.Inventory{}, Options{Interval: time.Minute})

	assert.NoError(t, s.Run(ctx))
	assert.Empty(t, runner.starts)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)

	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

type MockStore struct {
	inventories []inventory.Inventory
	err         error
	loads       int
}

func (m *MockStore) Load() (inventory.Inventory, error) {
	i := m.loads
	m.loads++
	if m.err != nil {
		return inventory.Inventory{}, m.err
	}
	if i >= len(m.inventories) {
		i = len(m.inventories) - 1
	}
	return m.inventories[i], nil
}

func (m *MockStore) Save(inventory.Inventory) error { return nil }

func TestSchedulerReload(t *testing.T) {
	home := inventory.Record{Zone: "example.com", Record: "home", Type: provider.TypeA}
	www := inventory.Record{Zone: "example.com", Record: "www", Type: provider.TypeA}

	tests := []struct {
		name   string
		reload bool
		store  *MockStore
		want   [][]inventory.Record
	}{
		{
			name:   "reload picks up edits",
			reload: true,
			store:  &MockStore{inventories: []inventory.Inventory{{Records: []inventory.Record{home, www}}}},
			want:   [][]inventory.Record{{home}, {home, www}},
		},
		{
			name:   "failed reload keeps previous",
			reload: true,
			store:  &MockStore{err: errors.New("invalid inventory")},
			want:   [][]inventory.Record{{home}, {home}},
		},
		{
			name:   "retained",
			reload: false,
			store:  &MockStore{inventories: []inventory.Inventory{{Records: []inventory.Record{home, www}}}},
			want:   [][]inventory.Record{{home}, {home}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			runner := &fakeRunner{
				clock:     &fakeClock{},
				durations: []time.Duration{time.Second, time.Second},
				cancel:    cancel,
			}
			initial := inventory.Inventory{Records: []inventory.Record{home}}
			s, _ := newTestScheduler(runner, tt.store, initial, Options{Interval: time.Second, Reload: tt.reload})

			require.NoError(t, s.Run(ctx))
			assert.Equal(t, tt.want, runner.seen)
		})
	}
}

type MockHistory struct {
	saved []state.Summary
}

func (m *MockHistory) SaveSummary(ctx context.Context, s state.Summary) error {
	m.saved = append(m.saved, s)
	return nil
}

func (m *MockHistory) LoadSummaries(ctx context.Context, limit int) ([]state.Summary, error) {
	return m.saved, nil
}

func (m *MockHistory) Close() error { return nil }

func TestSchedulerRecordsHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history := &MockHistory{}
	runner := &fakeRunner{
		clock:     &fakeClock{},
		durations: []time.Duration{time.Second, time.Second},
		cancel:    cancel,
	}
	s, _ := newTestScheduler(runner, nil, inventory.Inventory{}, Options{Interval: time.Second, History: history})

	require.NoError(t, s.Run(ctx))
	assert.Len(t, history.saved, 2)
}
