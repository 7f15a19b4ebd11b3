package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/studyhub/internal/apperr"
)

type memTimer struct {
	state   State
	entries map[Date]int64
}

// memStore is an in-memory Store. A single mutex stands in for row locks.
type memStore struct {
	mu     sync.Mutex
	users  map[string]bool
	timers map[string]*memTimer
}

func newMemStore(users ...string) *memStore {
	s := &memStore{users: map[string]bool{}, timers: map[string]*memTimer{}}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

type memTx struct {
	t *memTimer
}

func (m *memTx) State() State { return m.t.state }

func (m *memTx) SaveState(_ context.Context, st State) error {
	m.t.state = st
	return nil
}

func (m *memTx) Entry(_ context.Context, d Date) (int64, bool, error) {
	v, ok := m.t.entries[d]
	return v, ok, nil
}

func (m *memTx) EnsureEntry(_ context.Context, d Date) (int64, error) {
	if _, ok := m.t.entries[d]; !ok {
		m.t.entries[d] = 0
	}
	return m.t.entries[d], nil
}

func (m *memTx) SetDuration(_ context.Context, d Date, seconds int64) error {
	m.t.entries[d] = seconds
	return nil
}

func (s *memStore) WithUser(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	cur, ok := s.timers[userID]
	if !ok {
		cur = &memTimer{state: State{UserID: userID}, entries: map[Date]int64{}}
	}
	work := &memTimer{state: cur.state, entries: map[Date]int64{}}
	for k, v := range cur.entries {
		work.entries[k] = v
	}
	if err := fn(ctx, &memTx{t: work}); err != nil {
		return err
	}
	s.timers[userID] = work
	return nil
}

func (s *memStore) Timer(_ context.Context, userID string) (*Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[userID]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "no timer")
	}
	t := &Timer{State: cur.state}
	for d, v := range cur.entries {
		t.Entries = append(t.Entries, Entry{Date: d, Duration: v})
	}
	return t, nil
}

func (s *memStore) Entries(ctx context.Context, userID string) ([]Entry, error) {
	t, err := s.Timer(ctx, userID)
	if err != nil {
		return []Entry{}, nil
	}
	return t.Entries, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type countingRecorder struct {
	transitions map[string]int
	sessions    []float64
}

func (r *countingRecorder) IncTimerTransition(action string) { r.transitions[action]++ }
func (r *countingRecorder) ObserveStudySession(s float64)    { r.sessions = append(r.sessions, s) }

func newTestService(users ...string) (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(newMemStore(users...))
	svc.now = clock.Now
	return svc, clock
}

var may1 = Date{Year: 2024, Month: time.May, Day: 1}

func TestStartThenGetIsZero(t *testing.T) {
	svc, _ := newTestService("a")
	ctx := context.Background()

	dur, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dur)

	got, err := svc.Get(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestStopAccumulatesElapsedSeconds(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(90*time.Second + 700*time.Millisecond)

	dur, err := svc.Stop(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(90), dur)

	snap, err := svc.Snapshot(ctx, "a")
	require.NoError(t, err)
	assert.False(t, snap.Studying)
	assert.Equal(t, int64(90), snap.TotalSeconds)
	require.NotNil(t, snap.LastTransition)
	assert.True(t, snap.LastTransition.Equal(clock.now))
}

func TestTwoCyclesAreAdditive(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	for _, d := range []time.Duration{30 * time.Second, 45 * time.Second} {
		_, err := svc.Start(ctx, "a", may1)
		require.NoError(t, err)
		clock.Advance(d)
		_, err = svc.Stop(ctx, "a", may1)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	got, err := svc.Get(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), got)

	dur, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), dur, "start returns the accumulated duration")
}

func TestStopWithoutEntry(t *testing.T) {
	svc, _ := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)

	_, err = svc.Stop(ctx, "a", Date{Year: 2024, Month: time.May, Day: 2})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStopWhenNotRunning(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, err = svc.Stop(ctx, "a", may1)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = svc.Stop(ctx, "a", may1)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := svc.Get(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got, "failed stop must not change the entry")
}

func TestStartWhileStudyingRestartsSession(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(5 * time.Second)

	dur, err := svc.Stop(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), dur)
}

func TestClockSkewClampsToZero(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(-time.Minute)

	dur, err := svc.Stop(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dur)
}

func TestUnknownUser(t *testing.T) {
	svc, _ := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "ghost", may1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, "ghost", may1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetMissingDate(t *testing.T) {
	svc, _ := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "a", Date{Year: 2024, Month: time.June, Day: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentStopsCreditOnce(t *testing.T) {
	svc, clock := newTestService("a")
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Stop(ctx, "a", may1)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperr.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, ok)

	got, err := svc.Get(ctx, "a", may1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got)
}

func TestMetricsRecorded(t *testing.T) {
	svc, clock := newTestService("a")
	rec := &countingRecorder{transitions: map[string]int{}}
	svc.SetMetrics(rec)
	ctx := context.Background()

	_, err := svc.Start(ctx, "a", may1)
	require.NoError(t, err)
	clock.Advance(3 * time.Second)
	_, err = svc.Stop(ctx, "a", may1)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.transitions["start"])
	assert.Equal(t, 1, rec.transitions["stop"])
	assert.Equal(t, []float64{3}, rec.sessions)
}
