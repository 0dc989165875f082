// Package service tracks login attempts and derives account lockouts from the history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"adminguard/internal/loginattempt/models"
	"adminguard/internal/security"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store is append-only persistence for attempts. Lists are newest first.
type Store interface {
	Append(ctx context.Context, attempt *models.LoginAttempt) error
	ListByEmailSince(ctx context.Context, email string, since time.Time) ([]models.LoginAttempt, error)
	ListFailuresBySourceSince(ctx context.Context, source string, since time.Time) ([]models.LoginAttempt, error)
	SummarizeSources(ctx context.Context, since time.Time, minAccounts int) ([]models.SourceSummary, error)
}

const defaultSuspiciousAccounts = 10

type Service struct {
	store              Store
	policy             models.Policy
	suspiciousAccounts int
	publisher          security.Publisher
	logger             *slog.Logger
	metrics            *Metrics
}

type Option func(*Service)

func WithPolicy(p models.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithSuspiciousAccounts sets how many distinct accounts one source must fail against
// within the lockout window before it is flagged.
func WithSuspiciousAccounts(n int) Option {
	return func(s *Service) {
		s.suspiciousAccounts = n
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

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("login attempt store is required")
	}
	s := &Service{
		store:              store,
		policy:             models.DefaultPolicy(),
		suspiciousAccounts: defaultSuspiciousAccounts,
		publisher:          security.Nop{},
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.Threshold <= 0 || s.policy.Window <= 0 || s.policy.Duration <= 0 {
		return nil, errors.New("lockout policy requires a positive threshold, window and duration")
	}
	return s, nil
}

func (s *Service) Policy() models.Policy {
	return s.policy
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Record appends an attempt and returns the lock state it leaves the account in.
// A failed write is Internal so the caller fails the login closed.
func (s *Service) Record(ctx context.Context, email, sourceAddress string, success bool, reason models.FailureReason) (models.LockState, error) {
	email = normalize(email)
	now := requestcontext.Now(ctx)
	attempt, err := models.NewLoginAttempt(email, sourceAddress, success, reason, now)
	if err != nil {
		return models.LockState{}, err
	}
	if err := s.store.Append(ctx, attempt); err != nil {
		return models.LockState{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login attempt")
	}
	s.metrics.IncAttempt(success, attempt.FailureReason)

	if success {
		return models.LockState{}, nil
	}

	// Every failure reason runs the same reads so a rejection against a locked account
	// costs what any other rejection costs.
	state, err := s.evaluate(ctx, email, now)
	if err != nil {
		// The attempt is stored; the next check recomputes from history.
		s.logger.ErrorContext(ctx, "failed to evaluate lockout after failure", "error", err)
		s.checkSource(ctx, email, sourceAddress, now)
		return models.LockState{}, nil
	}
	engaged := attempt.FailureReason.CountsTowardLockout() && state.LockedUntil.Equal(now.Add(s.policy.Duration))
	if state.Locked && engaged {
		s.metrics.IncLockout()
		s.logger.WarnContext(ctx, "account locked",
			"email", email,
			"locked_until", state.LockedUntil,
			"failures", state.Streak,
		)
		s.publisher.Publish(ctx, security.NewEvent(ctx, security.EventAccountLocked, security.SeverityWarning, email,
			map[string]any{"locked_until": state.LockedUntil, "failures": state.Streak}))
	}

	s.checkSource(ctx, email, sourceAddress, now)
	return state, nil
}

// checkSource flags a source once it has failed against the configured number of
// distinct accounts within the window. Each newly targeted account past the threshold
// emits another signal.
func (s *Service) checkSource(ctx context.Context, email, source string, now time.Time) {
	if source == "" || s.suspiciousAccounts <= 0 {
		return
	}
	failures, err := s.store.ListFailuresBySourceSince(ctx, source, now.Add(-s.policy.Window))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load failures by source", "error", err)
		return
	}
	summary := summarize(source, failures)
	if summary.DistinctAccounts < s.suspiciousAccounts {
		return
	}
	seen := 0
	for _, f := range failures {
		if f.Email == email {
			seen++
		}
	}
	if seen != 1 {
		return
	}
	s.metrics.IncSuspiciousSource()
	s.logger.WarnContext(ctx, "suspicious login source",
		"source_address", source,
		"distinct_accounts", summary.DistinctAccounts,
		"failures", summary.Failures,
	)
	s.publisher.Publish(ctx, security.NewEvent(ctx, security.EventSuspiciousSource, security.SeverityCritical, source,
		map[string]any{"distinct_accounts": summary.DistinctAccounts, "failures": summary.Failures}))
}

func (s *Service) evaluate(ctx context.Context, email string, now time.Time) (models.LockState, error) {
	history, err := s.store.ListByEmailSince(ctx, email, now.Add(-s.policy.Lookback()))
	if err != nil {
		return models.LockState{}, err
	}
	return s.policy.Evaluate(history, now), nil
}

// IsLocked reports whether the account is locked now and until when.
func (s *Service) IsLocked(ctx context.Context, email string) (bool, time.Time, error) {
	state, err := s.evaluate(ctx, normalize(email), requestcontext.Now(ctx))
	if err != nil {
		return false, time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lockout")
	}
	return state.Locked, state.LockedUntil, nil
}

// RecentFailureCount counts failures since the last success within window.
func (s *Service) RecentFailureCount(ctx context.Context, email string, window time.Duration) (int, error) {
	now := requestcontext.Now(ctx)
	since := now.Add(-window)
	history, err := s.store.ListByEmailSince(ctx, normalize(email), since)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count failures")
	}
	return models.FailuresWithin(history, since), nil
}

// FailuresBySource aggregates failures from one source within window.
func (s *Service) FailuresBySource(ctx context.Context, source string, window time.Duration) (models.SourceSummary, error) {
	failures, err := s.store.ListFailuresBySourceSince(ctx, source, requestcontext.Now(ctx).Add(-window))
	if err != nil {
		return models.SourceSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load failures by source")
	}
	return summarize(source, failures), nil
}

// SuspiciousSources lists sources that failed against at least minAccounts distinct
// accounts within window.
func (s *Service) SuspiciousSources(ctx context.Context, window time.Duration, minAccounts int) ([]models.SourceSummary, error) {
	if minAccounts <= 0 {
		minAccounts = s.suspiciousAccounts
	}
	out, err := s.store.SummarizeSources(ctx, requestcontext.Now(ctx).Add(-window), minAccounts)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize sources")
	}
	return out, nil
}

func summarize(source string, failures []models.LoginAttempt) models.SourceSummary {
	summary := models.SourceSummary{SourceAddress: source, Failures: len(failures)}
	emails := make(map[string]struct{}, len(failures))
	for i, f := range failures {
		emails[f.Email] = struct{}{}
		if i == 0 || f.Timestamp.After(summary.LastFailureAt) {
			summary.LastFailureAt = f.Timestamp
		}
		if i == 0 || f.Timestamp.Before(summary.FirstFailureAt) {
			summary.FirstFailureAt = f.Timestamp
		}
	}
	summary.DistinctAccounts = len(emails)
	return summary
}
