// Package dbx holds the small pgx helpers shared by the stores: a query
// interface satisfied by both *pgxpool.Pool and pgx.Tx, a transaction
// runner, and translation of driver errors into apperr kinds.
package dbx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alecgard/studyhub/internal/apperr"
)

// DBTX is the query subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// store helpers run the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func WithTx(ctx context.Context, db Beginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// MapError wraps err with op and translates well-known driver errors:
// missing rows and foreign key violations become apperr.ErrNotFound and
// unique violations become apperr.ErrConflict. Errors that already carry an
// apperr kind pass through with their message intact.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.Message(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.ErrNotFound, op+": not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.New(apperr.ErrConflict, op+": already exists")
		case codeForeignKeyViolation:
			return apperr.New(apperr.ErrNotFound, op+": referenced record not found")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
