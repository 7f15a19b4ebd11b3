package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/solvedac"
)

// AccountStore is the persistence the service needs. *Store satisfies it.
type AccountStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*User, error)
	CreateAccount(ctx context.Context, u *User, info *solvedac.User, defaultGroup string) error
	UpdateProfile(ctx context.Context, id string, info *solvedac.User) error
	Card(ctx context.Context, id string) (*Card, error)
	Profile(ctx context.Context, id string) (*Profile, error)
	AddProblem(ctx context.Context, id, problem string) error
	RemoveProblem(ctx context.Context, id, problem string) error
}

// ProfileSource fetches enrichment data for a handle.
type ProfileSource interface {
	UserShow(ctx context.Context, handle string) (*solvedac.User, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
}

// TokenIssuer issues login tokens.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// Recorder receives authentication outcomes.
type Recorder interface {
	IncAuthAttempt(kind, outcome string)
}

// Service implements signup, login and profile operations.
type Service struct {
	store        AccountStore
	source       ProfileSource
	tokens       TokenIssuer
	defaultGroup string
	logger       *slog.Logger
	metrics      Recorder
}

// NewService creates an account service. New accounts join defaultGroup when
// it is non-empty and exists.
func NewService(store AccountStore, source ProfileSource, tokens TokenIssuer, defaultGroup string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		source:       source,
		tokens:       tokens,
		defaultGroup: defaultGroup,
		logger:       logger,
	}
}

// SetMetrics sets the optional metrics recorder.
func (s *Service) SetMetrics(m Recorder) {
	s.metrics = m
}

// CheckID reports whether an account id is taken.
func (s *Service) CheckID(ctx context.Context, id string) (bool, error) {
	return s.store.Exists(ctx, id)
}

// CheckHandle reports whether solved.ac knows handle.
func (s *Service) CheckHandle(ctx context.Context, handle string) (bool, error) {
	return s.source.HandleExists(ctx, handle)
}

// Signup creates an account. Enrichment is fetched before anything is
// written, so an upstream failure leaves no partial account behind.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Profile, error) {
	exists, err := s.store.Exists(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.record("signup", "conflict")
		return nil, apperr.New(apperr.ErrConflict, "ID already exists")
	}

	info, err := s.source.UserShow(ctx, in.Handle)
	if err != nil {
		s.record("signup", "upstream_error")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		ID:           in.ID,
		Handle:       in.Handle,
		Nickname:     in.Nickname,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateAccount(ctx, u, info, s.defaultGroup); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.record("signup", "conflict")
			return nil, apperr.New(apperr.ErrConflict, "ID already exists")
		}
		return nil, err
	}

	s.record("signup", "success")
	return s.store.Profile(ctx, u.ID)
}

// Login verifies credentials, re-syncs the profile from solved.ac and issues
// a token. Bad credentials never reveal which field was wrong.
func (s *Service) Login(ctx context.Context, id, password string) (*LoginResult, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if u == nil || !CheckPassword(u, password) {
		s.record("login", "failure")
		return nil, apperr.New(apperr.ErrAuthFailed, "incorrect id or password")
	}

	info, err := s.source.UserShow(ctx, u.Handle)
	if err != nil {
		s.record("login", "upstream_error")
		s.logger.Warn("profile refresh failed at login", "user_id", id, "error", err)
		return nil, apperr.New(apperr.ErrUpstream, "failed to fetch additional user data from solved.ac")
	}
	if err := s.store.UpdateProfile(ctx, u.ID, info); err != nil {
		return nil, err
	}

	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.Profile(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	s.record("login", "success")
	return &LoginResult{Token: token, ExpiresAt: exp, Profile: profile}, nil
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, id string) (*Profile, error) {
	return s.store.Profile(ctx, id)
}

// Card returns the compact member view of id.
func (s *Service) Card(ctx context.Context, id string) (*Card, error) {
	return s.store.Card(ctx, id)
}

// AddProblem adds problem to the user's list.
func (s *Service) AddProblem(ctx context.Context, id, problem string) error {
	return s.store.AddProblem(ctx, id, problem)
}

// RemoveProblem removes problem from the user's list.
func (s *Service) RemoveProblem(ctx context.Context, id, problem string) error {
	return s.store.RemoveProblem(ctx, id, problem)
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *Service) record(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.IncAuthAttempt(kind, outcome)
	}
}
