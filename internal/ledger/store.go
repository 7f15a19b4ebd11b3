package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/dbx"
)

// PGStore is the Postgres-backed ledger store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new ledger store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithUser locks the user's timer row for the duration of fn.
func (s *PGStore) WithUser(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO timers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		); err != nil {
			return dbx.MapError(err, "creating timer for "+userID)
		}

		lt := &lockedTimer{tx: tx, state: State{UserID: userID}}
		err := tx.QueryRow(ctx,
			`SELECT is_studying, last_transition, total_seconds
			 FROM timers WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&lt.state.Studying, &lt.state.LastTransition, &lt.state.TotalSeconds)
		if err != nil {
			return dbx.MapError(err, "locking timer for "+userID)
		}
		return fn(ctx, lt)
	})
}

// Timer returns the user's state and all entries ordered by date.
func (s *PGStore) Timer(ctx context.Context, userID string) (*Timer, error) {
	t := &Timer{State: State{UserID: userID}}
	err := s.pool.QueryRow(ctx,
		`SELECT is_studying, last_transition, total_seconds FROM timers WHERE user_id = $1`, userID,
	).Scan(&t.Studying, &t.LastTransition, &t.TotalSeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.ErrNotFound, "no timer for user %s", userID)
		}
		return nil, fmt.Errorf("getting timer: %w", err)
	}

	entries, err := listEntries(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	t.Entries = entries
	return t, nil
}

// Entries returns every dated entry of the user ordered by date.
func (s *PGStore) Entries(ctx context.Context, userID string) ([]Entry, error) {
	return listEntries(ctx, s.pool, userID)
}

func listEntries(ctx context.Context, q dbx.DBTX, userID string) ([]Entry, error) {
	rows, err := q.Query(ctx,
		`SELECT entry_date, duration_seconds FROM timer_entries
		 WHERE user_id = $1 ORDER BY entry_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing timer entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			day time.Time
			e   Entry
		)
		if err := rows.Scan(&day, &e.Duration); err != nil {
			return nil, fmt.Errorf("scanning timer entry: %w", err)
		}
		e.Date = DateOf(day)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type lockedTimer struct {
	tx    dbx.DBTX
	state State
}

func (l *lockedTimer) State() State { return l.state }

func (l *lockedTimer) SaveState(ctx context.Context, st State) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE timers SET is_studying = $2, last_transition = $3, total_seconds = $4
		 WHERE user_id = $1`,
		l.state.UserID, st.Studying, st.LastTransition, st.TotalSeconds)
	if err != nil {
		return fmt.Errorf("saving timer state: %w", err)
	}
	l.state = st
	return nil
}

func (l *lockedTimer) Entry(ctx context.Context, d Date) (int64, bool, error) {
	var dur int64
	err := l.tx.QueryRow(ctx,
		`SELECT duration_seconds FROM timer_entries WHERE user_id = $1 AND entry_date = $2`,
		l.state.UserID, d.Time(),
	).Scan(&dur)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting timer entry: %w", err)
	}
	return dur, true, nil
}

func (l *lockedTimer) EnsureEntry(ctx context.Context, d Date) (int64, error) {
	if _, err := l.tx.Exec(ctx,
		`INSERT INTO timer_entries (user_id, entry_date, duration_seconds)
		 VALUES ($1, $2, 0) ON CONFLICT (user_id, entry_date) DO NOTHING`,
		l.state.UserID, d.Time(),
	); err != nil {
		return 0, fmt.Errorf("ensuring timer entry: %w", err)
	}
	dur, _, err := l.Entry(ctx, d)
	return dur, err
}

func (l *lockedTimer) SetDuration(ctx context.Context, d Date, seconds int64) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE timer_entries SET duration_seconds = $3 WHERE user_id = $1 AND entry_date = $2`,
		l.state.UserID, d.Time(), seconds)
	if err != nil {
		return fmt.Errorf("setting timer entry: %w", err)
	}
	return nil
}
