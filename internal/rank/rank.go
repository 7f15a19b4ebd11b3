// Package rank builds group leaderboards from membership, timer ledgers and
// profiles.
package rank

import (
	"context"
	"errors"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/alecgard/studyhub/internal/user"
)

// Entry is one leaderboard row.
type Entry struct {
	ID              string `json:"id"`
	Nickname        string `json:"nickname"`
	Handle          string `json:"bj_id"`
	Tier            int    `json:"tier"`
	SolvedCount     int    `json:"solvedCount"`
	Rank            int    `json:"rank"`
	Rating          int    `json:"rating"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	Duration        int64  `json:"duration"`
}

// GroupReader lists group members in join order.
type GroupReader interface {
	MemberIDs(ctx context.Context, group string) ([]string, error)
}

// LedgerReader returns a user's timer entries.
type LedgerReader interface {
	Entries(ctx context.Context, userID string) ([]ledger.Entry, error)
}

// ProfileReader returns a user's member card.
type ProfileReader interface {
	Card(ctx context.Context, id string) (*user.Card, error)
}

// Service computes leaderboards.
type Service struct {
	groups         GroupReader
	ledgers        LedgerReader
	profiles       ProfileReader
	maxConcurrency int
}

// NewService creates a ranking service running at most maxConcurrency
// member lookups at a time.
func NewService(groups GroupReader, ledgers LedgerReader, profiles ProfileReader, maxConcurrency int) *Service {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Service{
		groups:         groups,
		ledgers:        ledgers,
		profiles:       profiles,
		maxConcurrency: maxConcurrency,
	}
}

// RankDay ranks the group's members by time studied on d.
func (s *Service) RankDay(ctx context.Context, group string, d ledger.Date) ([]Entry, error) {
	return s.rank(ctx, group, func(x ledger.Date) bool { return x == d })
}

// RankMonth ranks the group's members by time studied during ym.
func (s *Service) RankMonth(ctx context.Context, group string, ym ledger.YearMonth) ([]Entry, error) {
	return s.rank(ctx, group, ym.Contains)
}

// rank sums each member's matching entries and sorts by duration
// descending. Ties keep member order.
func (s *Service) rank(ctx context.Context, group string, match func(ledger.Date) bool) ([]Entry, error) {
	members, err := s.groups.MemberIDs(ctx, group)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(members))
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(s.maxConcurrency)

	for i, id := range members {
		p.Go(func(ctx context.Context) error {
			e, err := s.member(ctx, id, match)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration > out[j].Duration })
	return out, nil
}

func (s *Service) member(ctx context.Context, id string, match func(ledger.Date) bool) (Entry, error) {
	e := Entry{ID: id}

	entries, err := s.ledgers.Entries(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return e, err
	}
	for _, le := range entries {
		if match(le.Date) {
			e.Duration += le.Duration
		}
	}

	card, err := s.profiles.Card(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return e, err
	default:
		e.Nickname = card.Nickname
		e.Handle = card.Handle
		e.Tier = card.Tier
		e.SolvedCount = card.SolvedCount
		e.Rank = card.Rank
		e.Rating = card.Rating
		e.ProfileImageURL = card.ProfileImageURL
	}
	return e, nil
}
