package ledger

import (
	"context"
	"time"

	"github.com/alecgard/studyhub/internal/apperr"
)

// Tx is a view of one user's ledger inside a transaction that holds that
// user's lock. Implementations must serialize concurrent transactions for the
// same user.
type Tx interface {
	State() State
	SaveState(ctx context.Context, st State) error
	// Entry returns the duration for d and whether the entry exists.
	Entry(ctx context.Context, d Date) (int64, bool, error)
	// EnsureEntry inserts d with duration 0 if absent and returns its duration.
	EnsureEntry(ctx context.Context, d Date) (int64, error)
	SetDuration(ctx context.Context, d Date, seconds int64) error
}

// Store persists timer ledgers.
type Store interface {
	// WithUser runs fn in a transaction holding userID's lock, creating the
	// timer row if it does not exist yet.
	WithUser(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
	// Timer returns the user's ledger, or apperr.ErrNotFound.
	Timer(ctx context.Context, userID string) (*Timer, error)
	// Entries returns the user's entries; a user without a ledger has none.
	Entries(ctx context.Context, userID string) ([]Entry, error)
}

// Recorder receives timer transitions for metrics.
type Recorder interface {
	IncTimerTransition(action string)
	ObserveStudySession(seconds float64)
}

// Service implements start/stop accrual over a Store.
type Service struct {
	store   Store
	now     func() time.Time // injectable clock for testing
	metrics Recorder
}

// NewService creates a ledger service using the wall clock.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetMetrics sets the optional metrics recorder.
func (s *Service) SetMetrics(m Recorder) {
	s.metrics = m
}

// Start opens a study session for userID and returns the duration already
// accumulated on d. Starting an open session restarts it from now.
func (s *Service) Start(ctx context.Context, userID string, d Date) (int64, error) {
	var duration int64
	err := s.store.WithUser(ctx, userID, func(ctx context.Context, tx Tx) error {
		dur, err := tx.EnsureEntry(ctx, d)
		if err != nil {
			return err
		}
		st := tx.State()
		now := s.now().UTC()
		st.Studying = true
		st.LastTransition = &now
		if err := tx.SaveState(ctx, st); err != nil {
			return err
		}
		duration = dur
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.record("start", -1)
	return duration, nil
}

// Stop closes the open session of userID, credits the elapsed whole seconds
// to d and returns the new duration for d.
func (s *Service) Stop(ctx context.Context, userID string, d Date) (int64, error) {
	var duration, elapsed int64
	err := s.store.WithUser(ctx, userID, func(ctx context.Context, tx Tx) error {
		current, ok, err := tx.Entry(ctx, d)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Newf(apperr.ErrNotFound, "no duration entry for user %s on %s", userID, d)
		}

		st := tx.State()
		if !st.Studying || st.LastTransition == nil {
			return apperr.New(apperr.ErrInvalidState, "timer is not running")
		}

		now := s.now().UTC()
		elapsed = int64(now.Sub(*st.LastTransition) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}

		duration = current + elapsed
		if err := tx.SetDuration(ctx, d, duration); err != nil {
			return err
		}

		st.Studying = false
		st.LastTransition = &now
		st.TotalSeconds += elapsed
		return tx.SaveState(ctx, st)
	})
	if err != nil {
		return 0, err
	}
	s.record("stop", elapsed)
	return duration, nil
}

// Get returns the duration accumulated by userID on d.
func (s *Service) Get(ctx context.Context, userID string, d Date) (int64, error) {
	t, err := s.store.Timer(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, e := range t.Entries {
		if e.Date == d {
			return e.Duration, nil
		}
	}
	return 0, apperr.Newf(apperr.ErrNotFound, "date %s not found for this user", d)
}

// Snapshot returns the user's full ledger.
func (s *Service) Snapshot(ctx context.Context, userID string) (*Timer, error) {
	return s.store.Timer(ctx, userID)
}

// Entries returns every entry of userID; no ledger means no entries.
func (s *Service) Entries(ctx context.Context, userID string) ([]Entry, error) {
	return s.store.Entries(ctx, userID)
}

func (s *Service) record(action string, elapsed int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncTimerTransition(action)
	if elapsed >= 0 {
		s.metrics.ObserveStudySession(float64(elapsed))
	}
}
