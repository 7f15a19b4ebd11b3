package problem

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists the problem cache.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new problem store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Upsert inserts problems by id. Existing rows only get their tag updated.
func (s *PGStore) Upsert(ctx context.Context, problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range problems {
		batch.Queue(
			`INSERT INTO problems (problem_id, title_ko, level, tag_key)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (problem_id) DO UPDATE SET tag_key = EXCLUDED.tag_key`,
			p.ID, p.TitleKo, p.Level, p.Key)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting problems: %w", err)
	}
	return nil
}

// Find returns up to limit problems with level in [minLevel, maxLevel] and a
// tag in tags, ordered by problem id.
func (s *PGStore) Find(ctx context.Context, minLevel, maxLevel int, tags []string, limit int) ([]Problem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT problem_id, title_ko, level, tag_key FROM problems
		 WHERE level BETWEEN $1 AND $2 AND tag_key = ANY($3)
		 ORDER BY problem_id
		 LIMIT $4`,
		minLevel, maxLevel, tags, limit)
	if err != nil {
		return nil, fmt.Errorf("finding problems: %w", err)
	}
	defer rows.Close()

	var out []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.TitleKo, &p.Level, &p.Key); err != nil {
			return nil, fmt.Errorf("scanning problem row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of cached problems.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM problems`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting problems: %w", err)
	}
	return n, nil
}
