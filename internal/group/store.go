package group

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/dbx"
)

// PGStore provides database operations for groups and memberships.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new group store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts g and the manager's membership edge in one transaction.
func (s *PGStore) Create(ctx context.Context, g *Group) error {
	return dbx.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (name, manager_id, goal_time, goal_number, tier, is_secret, password_hash, bio)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			g.Name, g.ManagerID, g.GoalTime, g.GoalNumber, g.Tier, g.IsSecret, g.PasswordHash, g.Bio)
		if err != nil {
			return mapGroupError(err, "group "+g.Name)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO group_members (group_name, user_id) VALUES ($1, $2)`, g.Name, g.ManagerID)
		if err != nil {
			return mapGroupError(err, "manager "+g.ManagerID)
		}
		return nil
	})
}

// Get returns the group with its members and problems.
func (s *PGStore) Get(ctx context.Context, name string) (*Group, error) {
	g := &Group{}
	err := s.pool.QueryRow(ctx,
		`SELECT name, manager_id, goal_time, goal_number, tier, is_secret, password_hash, bio, created_at
		 FROM groups WHERE name = $1`, name,
	).Scan(&g.Name, &g.ManagerID, &g.GoalTime, &g.GoalNumber, &g.Tier, &g.IsSecret,
		&g.PasswordHash, &g.Bio, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "group not found")
		}
		return nil, fmt.Errorf("getting group: %w", err)
	}

	if g.Members, err = s.strings(ctx,
		`SELECT user_id FROM group_members WHERE group_name = $1 ORDER BY seq`, name); err != nil {
		return nil, fmt.Errorf("listing group members: %w", err)
	}
	if g.Problems, err = s.strings(ctx,
		`SELECT problem FROM group_problems WHERE group_name = $1 ORDER BY seq`, name); err != nil {
		return nil, fmt.Errorf("listing group problems: %w", err)
	}
	return g, nil
}

// Names returns every group name in creation order.
func (s *PGStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.strings(ctx, `SELECT name FROM groups ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return names, nil
}

// AddMember inserts the membership edge. Existing edges are left alone.
func (s *PGStore) AddMember(ctx context.Context, name, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_members (group_name, user_id) VALUES ($1, $2)
		 ON CONFLICT (group_name, user_id) DO NOTHING`, name, userID)
	if err != nil {
		return mapGroupError(err, "user "+userID)
	}
	return nil
}

// RemoveMember deletes the membership edge and reports whether it existed.
func (s *PGStore) RemoveMember(ctx context.Context, name, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_name = $1 AND user_id = $2`, name, userID)
	if err != nil {
		return false, fmt.Errorf("removing group member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UserExists reports whether an account with id exists.
func (s *PGStore) UserExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return ok, nil
}

// Update writes the settings present in in. Nil fields and a nil
// passwordHash keep the stored values.
func (s *PGStore) Update(ctx context.Context, in UpdateInput, passwordHash *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE groups SET goal_time = COALESCE($2, goal_time),
		        goal_number = COALESCE($3, goal_number),
		        is_secret = COALESCE($4, is_secret),
		        bio = COALESCE($5, bio),
		        password_hash = COALESCE($6, password_hash)
		 WHERE name = $1`,
		in.Name, in.GoalTime, in.GoalNumber, in.IsSecret, in.Bio, passwordHash)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "group not found")
	}
	return nil
}

// AddProblem appends problem to the group's list.
func (s *PGStore) AddProblem(ctx context.Context, name, problem string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO group_problems (group_name, problem) VALUES ($1, $2)
		 ON CONFLICT (group_name, problem) DO NOTHING`, name, problem)
	if err != nil {
		return mapGroupError(err, "group "+name)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrConflict, "problem already exists in the group")
	}
	return nil
}

// RemoveProblem deletes problem from the group's list.
func (s *PGStore) RemoveProblem(ctx context.Context, name, problem string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM group_problems WHERE group_name = $1 AND problem = $2`, name, problem)
	if err != nil {
		return fmt.Errorf("removing group problem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "problem not found in the group")
	}
	return nil
}

func (s *PGStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func mapGroupError(err error, op string) error {
	mapped := dbx.MapError(err, op)
	switch {
	case errors.Is(mapped, apperr.ErrConflict):
		return apperr.New(apperr.ErrConflict, "group name already exists")
	case errors.Is(mapped, apperr.ErrNotFound):
		return apperr.Newf(apperr.ErrNotFound, "%s not found", op)
	}
	return mapped
}
