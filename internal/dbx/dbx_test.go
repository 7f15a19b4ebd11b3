package dbx

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alecgard/studyhub/internal/apperr"
)

func TestMapError(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		in   error
		kind error
	}{
		{"no rows", pgx.ErrNoRows, apperr.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, apperr.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, nil},
		{"plain error", boom, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.in, "loading thing")
			if tt.kind != nil {
				assert.ErrorIs(t, got, tt.kind)
				return
			}
			assert.ErrorIs(t, got, tt.in)
			assert.Contains(t, got.Error(), "loading thing")
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil, "op"))
}

func TestMapErrorKeepsAppErr(t *testing.T) {
	in := apperr.New(apperr.ErrInvalidState, "timer is not running")
	got := MapError(in, "stopping")
	msg, ok := apperr.Message(got)
	assert.True(t, ok)
	assert.Equal(t, "timer is not running", msg)
}
