package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/dbx"
	"github.com/alecgard/studyhub/internal/solvedac"
)

// Store provides database operations for accounts and profiles.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Exists reports whether an account with id exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking user id: %w", err)
	}
	return ok, nil
}

// GetByID retrieves an account by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, handle, nickname, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Handle, &u.Nickname, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// CreateAccount writes the account, its profile, an empty timer and, when
// defaultGroup names an existing group, that membership in one transaction.
func (s *Store) CreateAccount(ctx context.Context, u *User, info *solvedac.User, defaultGroup string) error {
	return dbx.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, handle, nickname, password_hash) VALUES ($1, $2, $3, $4)`,
			u.ID, u.Handle, u.Nickname, u.PasswordHash)
		if err != nil {
			return dbx.MapError(err, "user "+u.ID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO profiles (user_id, rank, rating, solved_count, tier, profile_image_url)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, info.Rank, info.Rating, info.SolvedCount, info.Tier, info.ProfileImageURL)
		if err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO timers (user_id) VALUES ($1)`, u.ID); err != nil {
			return fmt.Errorf("creating timer: %w", err)
		}

		if defaultGroup != "" {
			_, err = tx.Exec(ctx,
				`INSERT INTO group_members (group_name, user_id)
				 SELECT name, $2 FROM groups WHERE name = $1
				 ON CONFLICT DO NOTHING`,
				defaultGroup, u.ID)
			if err != nil {
				return fmt.Errorf("joining default group: %w", err)
			}
		}
		return nil
	})
}

// UpdateProfile overwrites the solved.ac fields of the user's profile.
func (s *Store) UpdateProfile(ctx context.Context, id string, info *solvedac.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, rank, rating, solved_count, tier, profile_image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   rank = EXCLUDED.rank,
		   rating = EXCLUDED.rating,
		   solved_count = EXCLUDED.solved_count,
		   tier = EXCLUDED.tier,
		   profile_image_url = EXCLUDED.profile_image_url,
		   updated_at = now()`,
		id, info.Rank, info.Rating, info.SolvedCount, info.Tier, info.ProfileImageURL)
	if err != nil {
		return dbx.MapError(err, "profile "+id)
	}
	return nil
}

// Card returns the member card of id, or apperr.ErrNotFound when the user
// has no profile.
func (s *Store) Card(ctx context.Context, id string) (*Card, error) {
	c := &Card{}
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.nickname, u.handle, p.profile_image_url, p.solved_count, p.rank, p.rating, p.tier
		 FROM users u JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = $1`, id,
	).Scan(&c.ID, &c.Nickname, &c.Handle, &c.ProfileImageURL, &c.SolvedCount, &c.Rank, &c.Rating, &c.Tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "profile not found")
		}
		return nil, fmt.Errorf("getting profile card: %w", err)
	}
	return c, nil
}

// Profile returns the full profile of id including group and problem lists.
func (s *Store) Profile(ctx context.Context, id string) (*Profile, error) {
	p := &Profile{}
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.handle, u.nickname, p.rank, p.rating, p.solved_count, p.tier,
		        p.profile_image_url, p.updated_at
		 FROM users u JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = $1`, id,
	).Scan(&p.ID, &p.Handle, &p.Nickname, &p.Rank, &p.Rating, &p.SolvedCount, &p.Tier,
		&p.ProfileImageURL, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if p.Groups, err = s.strings(ctx,
		`SELECT group_name FROM group_members WHERE user_id = $1 ORDER BY joined_at, seq`, id); err != nil {
		return nil, fmt.Errorf("listing profile groups: %w", err)
	}
	if p.Problems, err = s.strings(ctx,
		`SELECT problem FROM user_problems WHERE user_id = $1 ORDER BY seq`, id); err != nil {
		return nil, fmt.Errorf("listing profile problems: %w", err)
	}
	return p, nil
}

// AddProblem appends problem to the user's list. It returns
// apperr.ErrConflict if the problem is already listed.
func (s *Store) AddProblem(ctx context.Context, id, problem string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_problems (user_id, problem) VALUES ($1, $2)
		 ON CONFLICT (user_id, problem) DO NOTHING`, id, problem)
	if err != nil {
		return dbx.MapError(err, "user "+id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrConflict, "problem already exists for the user")
	}
	return nil
}

// RemoveProblem deletes problem from the user's list.
func (s *Store) RemoveProblem(ctx context.Context, id, problem string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_problems WHERE user_id = $1 AND problem = $2`, id, problem)
	if err != nil {
		return fmt.Errorf("removing user problem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "problem not found in the user")
	}
	return nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
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
