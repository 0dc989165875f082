// Package service records privileged actions and serves the audit log back to operators.
//
// Recording never fails the caller: a record that cannot be stored goes to a fallback
// logger with its full content and is counted in adminguard_audit_write_failures_total.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"adminguard/internal/audit/models"
	"adminguard/internal/security"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store appends records and pages through them newest first.
type Store interface {
	Append(ctx context.Context, record *models.Record) error
	Query(ctx context.Context, filter models.Filter, after *models.Cursor, limit int) ([]models.Record, error)
}

const (
	defaultWorkers = 2
	writeTimeout   = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

type Service struct {
	store         Store
	logger        *slog.Logger
	fallback      *slog.Logger
	metrics       *Metrics
	publisher     security.Publisher
	maxExportSpan time.Duration

	queue   chan *models.Record
	workers int

	mu      sync.RWMutex
	stopped bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFallbackLogger sets the channel that receives records the store rejected.
func WithFallbackLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.fallback = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p security.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithAsyncBuffer queues records for background workers started by Run.
// Zero keeps writes synchronous.
func WithAsyncBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queue = make(chan *models.Record, size)
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

func WithMaxExportSpan(d time.Duration) Option {
	return func(s *Service) {
		s.maxExportSpan = d
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	s := &Service{
		store:         store,
		logger:        slog.Default(),
		publisher:     security.Nop{},
		maxExportSpan: models.MaxExportSpan,
		workers:       defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = s.logger.With("channel", "audit_fallback")
	}
	if s.workers < 1 {
		return nil, errors.New("audit workers must be positive")
	}
	if s.maxExportSpan <= 0 {
		return nil, errors.New("audit export span must be positive")
	}
	return s, nil
}
