package ledger

import "time"

// State is the per-user timer state.
type State struct {
	UserID         string     `json:"id"`
	Studying       bool       `json:"is_studying"`
	LastTransition *time.Time `json:"recent,omitempty"`
	TotalSeconds   int64      `json:"total"`
}

// Entry is the accumulated study time of one user on one day.
type Entry struct {
	Date     Date  `json:"date"`
	Duration int64 `json:"duration"`
}

// Timer is a user's full ledger: state plus every dated entry.
type Timer struct {
	State
	Entries []Entry `json:"dates"`
}
