package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/user"
)

// Store is the persistence the group service needs. *PGStore satisfies it.
type Store interface {
	Create(ctx context.Context, g *Group) error
	Get(ctx context.Context, name string) (*Group, error)
	Names(ctx context.Context) ([]string, error)
	AddMember(ctx context.Context, name, userID string) error
	RemoveMember(ctx context.Context, name, userID string) (bool, error)
	UserExists(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, in UpdateInput, passwordHash *string) error
	AddProblem(ctx context.Context, name, problem string) error
	RemoveProblem(ctx context.Context, name, problem string) error
}

// CardLookup resolves member cards.
type CardLookup interface {
	Card(ctx context.Context, id string) (*user.Card, error)
}

// Service implements group and membership operations.
type Service struct {
	store  Store
	cards  CardLookup
	logger *slog.Logger
}

// NewService creates a group service.
func NewService(store Store, cards CardLookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cards: cards, logger: logger}
}

// Create creates a group whose only member is its manager. A duplicate name
// yields apperr.ErrConflict and leaves the existing group untouched.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Group, error) {
	if _, err := s.store.Get(ctx, in.Name); err == nil {
		return nil, apperr.New(apperr.ErrConflict, "group name already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	ok, err := s.store.UserExists(ctx, in.ManagerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "manager not found")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	g := &Group{
		Name:         in.Name,
		ManagerID:    in.ManagerID,
		GoalTime:     in.GoalTime,
		GoalNumber:   in.GoalNumber,
		Tier:         in.Tier,
		IsSecret:     in.IsSecret,
		PasswordHash: hash,
		Bio:          in.Bio,
	}
	if err := s.store.Create(ctx, g); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, in.Name)
}

// Join adds userID to the group and returns its current state. Joining
// twice is a no-op. A secret group with a password requires it from
// non-members.
func (s *Service) Join(ctx context.Context, userID, name, password string) (*Group, error) {
	g, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if g.HasMember(userID) {
		return g, nil
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	if g.IsSecret && g.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(password)) != nil {
			return nil, apperr.New(apperr.ErrAuthFailed, "incorrect group password")
		}
	}

	if err := s.store.AddMember(ctx, name, userID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, name)
}

// Leave removes userID from the group and returns its current state.
func (s *Service) Leave(ctx context.Context, userID, name string) (*Group, error) {
	if _, err := s.store.Get(ctx, name); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	removed, err := s.store.RemoveMember(ctx, name, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, apperr.New(apperr.ErrInvalidState, "user not in group")
	}
	return s.store.Get(ctx, name)
}

// Update changes the group's settings.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Group, error) {
	var hash *string
	if in.Password != "" {
		h, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}
	if err := s.store.Update(ctx, in, hash); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, in.Name)
}

// Info returns the group.
func (s *Service) Info(ctx context.Context, name string) (*Group, error) {
	return s.store.Get(ctx, name)
}

// List returns all group names.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.Names(ctx)
}

// MemberIDs returns the member ids of the group in join order.
func (s *Service) MemberIDs(ctx context.Context, name string) ([]string, error) {
	g, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

// Members returns the member cards of the group. Members without a profile
// are skipped.
func (s *Service) Members(ctx context.Context, name string) ([]user.Card, error) {
	g, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	cards := make([]user.Card, 0, len(g.Members))
	for _, id := range g.Members {
		c, err := s.cards.Card(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, nil
}

// AddProblem adds problem to the group's list.
func (s *Service) AddProblem(ctx context.Context, name, problem string) error {
	if _, err := s.store.Get(ctx, name); err != nil {
		return err
	}
	return s.store.AddProblem(ctx, name, problem)
}

// RemoveProblem removes problem from the group's list.
func (s *Service) RemoveProblem(ctx context.Context, name, problem string) error {
	if _, err := s.store.Get(ctx, name); err != nil {
		return err
	}
	return s.store.RemoveProblem(ctx, name, problem)
}

func (s *Service) requireUser(ctx context.Context, id string) error {
	ok, err := s.store.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	return nil
}

func hashPassword(pw string) (string, error) {
	if pw == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing group password: %w", err)
	}
	return string(h), nil
}
