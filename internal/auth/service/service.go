// Package service manages the session lifecycle: creation under a per-user cap, passive
// expiry, termination and the background sweeper.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"adminguard/internal/auth/models"
	id "adminguard/pkg/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store is the persistence contract for sessions. Implementations must make Create
// conditional on the id being absent and Terminate conditional on the session being live.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error
	Terminate(ctx context.Context, sessionID id.SessionID, at time.Time) error
	DeleteReapable(ctx context.Context, cutoff time.Time) (int, error)
	UserIDs(ctx context.Context) ([]id.UserID, error)
}

const (
	defaultTTL           = 7 * 24 * time.Hour
	defaultMaxPerUser    = 5
	defaultRetention     = 24 * time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Service owns session policy. Stores only provide the primitives.
type Service struct {
	sessions      Store
	ttl           time.Duration
	maxPerUser    int
	retention     time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	metrics       *Metrics
}

type Option func(*Service)

// WithTTL sets the session lifetime. It should match the refresh token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithMaxPerUser caps concurrently active sessions per user. Zero disables the cap.
func WithMaxPerUser(n int) Option {
	return func(s *Service) {
		s.maxPerUser = n
	}
}

// WithRetention sets how long expired or terminated records are kept before the sweeper
// deletes them.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		s.retention = d
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		s.sweepInterval = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(sessions Store, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	s := &Service{
		sessions:      sessions,
		ttl:           defaultTTL,
		maxPerUser:    defaultMaxPerUser,
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if s.maxPerUser < 0 {
		return nil, errors.New("session cap cannot be negative")
	}
	if s.sweepInterval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	return s, nil
}

// TTL is the lifetime given to new sessions.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
