// Package service enforces per-(subject, class) request ceilings chosen by role tier.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"adminguard/internal/permission"
	"adminguard/internal/ratelimit/config"
	"adminguard/internal/ratelimit/metrics"
	"adminguard/internal/ratelimit/models"
	"adminguard/internal/security"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/privacy"
	"adminguard/pkg/requestcontext"
)

// CounterStore atomically increments fixed-window counters.
type CounterStore interface {
	Increment(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int64, error)
}

type Service struct {
	counters  CounterStore
	limits    config.Limits
	publisher security.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	disabled  bool
}

type Option func(*Service)

func WithLimits(l config.Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

func WithPublisher(p security.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDisabled turns every check into an allow. For local demos only.
func WithDisabled(disabled bool) Option {
	return func(s *Service) {
		s.disabled = disabled
	}
}

func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("rate limit counter store is required")
	}
	s := &Service{
		counters:  counters,
		limits:    config.Default(),
		publisher: security.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.limits.Validate(); err != nil {
		return nil, err
	}
	if s.disabled {
		s.logger.Warn("rate limiting disabled")
	}
	return s, nil
}

// Check counts one request for subject against the ceiling for (role, class).
// A counter store failure fails closed as Internal.
func (s *Service) Check(ctx context.Context, subject string, role permission.Role, class models.Class) (models.Result, error) {
	limit, tier := s.limits.Ceiling(role, class)
	now := requestcontext.Now(ctx)
	windowStart := models.WindowStart(now, s.limits.Window)
	resetAt := windowStart.Add(s.limits.Window)

	if s.disabled {
		return models.Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt, Tier: tier}, nil
	}
	if !class.IsValid() {
		return models.Result{}, dErrors.New(dErrors.CodeInternal, "unknown rate limit class")
	}

	count, err := s.counters.Increment(ctx, models.CounterKey(subject, class), windowStart, s.limits.Window)
	if err != nil {
		s.metrics.IncrementStoreFailures()
		s.logger.ErrorContext(ctx, "rate limit store unavailable", "error", err, "class", class.String())
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	s.metrics.IncrementChecks(class.String(), string(tier))

	result := models.Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
		Tier:      tier,
	}
	if result.Allowed {
		return result, nil
	}

	result.RetryAfter = max(resetAt.Sub(now), time.Second)
	s.metrics.IncrementDenials(class.String(), string(tier))
	s.logger.WarnContext(ctx, "rate limit exceeded",
		"subject", privacy.AnonymizeIP(subject),
		"class", class.String(),
		"tier", string(tier),
		"limit", limit,
		"retry_after", result.RetryAfter.String(),
	)
	s.publisher.Publish(ctx, security.NewEvent(ctx, security.EventRateLimited, security.SeverityInfo, subject,
		map[string]any{"class": class.String(), "tier": string(tier), "limit": limit}))
	return result, nil
}
