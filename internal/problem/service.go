package problem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/solvedac"
)

// Store is the cache persistence. *PGStore satisfies it.
type Store interface {
	Upsert(ctx context.Context, problems []Problem) error
	Find(ctx context.Context, minLevel, maxLevel int, tags []string, limit int) ([]Problem, error)
	Count(ctx context.Context) (int, error)
}

// Source returns the ranked problem page for a handle.
type Source interface {
	TopProblems(ctx context.Context, handle string) ([]solvedac.Problem, error)
}

// Recorder receives refresh outcomes.
type Recorder interface {
	ObserveProblemRefresh(outcome string, upserted int)
}

// defaultRefreshTimeout bounds one upstream fetch plus upsert.
const defaultRefreshTimeout = 2 * time.Minute

// Service maintains the problem cache and answers recommendations.
type Service struct {
	store      Store
	source     Source
	seedHandle string
	logger     *slog.Logger
	metrics    Recorder
	refreshes  singleflight.Group
	timeout    time.Duration
}

// NewService creates a problem service that seeds from seedHandle's ranked page.
func NewService(store Store, source Source, seedHandle string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		source:     source,
		seedHandle: seedHandle,
		logger:     logger,
		timeout:    defaultRefreshTimeout,
	}
}

// SetMetrics sets the optional metrics recorder.
func (s *Service) SetMetrics(m Recorder) {
	s.metrics = m
}

// Refresh pulls the ranked page and upserts it, returning the number of
// problems written. Concurrent calls share one upstream fetch, which runs
// detached from the caller's cancellation but is bounded by the service
// timeout or by the caller's deadline when that is sooner.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.seedHandle == "" {
		return 0, apperr.New(apperr.ErrInvalidState, "no seed handle configured for problem refresh")
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	v, err, shared := s.refreshes.Do("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.refresh(ctx)
	})
	if shared {
		s.logger.Debug("problem refresh coalesced")
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Service) refresh(ctx context.Context) (int, error) {
	items, err := s.source.TopProblems(ctx, s.seedHandle)
	if err != nil {
		s.record("error", 0)
		return 0, err
	}

	problems := make([]Problem, 0, len(items))
	for _, it := range items {
		problems = append(problems, Problem{
			ID:      it.ID,
			TitleKo: it.TitleKo,
			Level:   it.Level,
			Key:     it.TagKey(),
		})
	}

	if err := s.store.Upsert(ctx, problems); err != nil {
		s.record("error", 0)
		return 0, fmt.Errorf("refreshing problems: %w", err)
	}

	s.record("ok", len(problems))
	s.logger.Info("problem cache refreshed", "handle", s.seedHandle, "problems", len(problems))
	return len(problems), nil
}

// Recommend returns up to RecommendLimit problems whose level is within
// three of tier and whose tag is one of tags.
func (s *Service) Recommend(ctx context.Context, tier int, tags []string) ([]Problem, error) {
	if len(tags) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "no matching problems found")
	}

	problems, err := s.store.Find(ctx, tier-tierWindow, tier+tierWindow, tags, RecommendLimit)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "no matching problems found")
	}
	return problems, nil
}

// Count returns the number of cached problems.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) record(outcome string, n int) {
	if s.metrics != nil {
		s.metrics.ObserveProblemRefresh(outcome, n)
	}
}
