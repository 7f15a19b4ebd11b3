// Package apperr defines the error kinds shared by the domain packages and
// mapped to HTTP status codes by the API layer.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrUpstream     = errors.New("upstream failure")
)

// Error carries a kind and a message that is safe to show to API callers.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Unwrap returns the kind so errors.Is works against the sentinels above.
func (e *Error) Unwrap() error { return e.kind }

// New returns an error of the given kind with a user-facing message.
func New(kind error, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf is New with fmt formatting.
func Newf(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Message returns the user-facing message of err if it carries one.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.msg, true
	}
	return "", false
}
