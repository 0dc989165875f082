package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"adminguard/internal/loginattempt/models"
)

// InMemoryStore keeps attempts in process, newest appended last.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []models.LoginAttempt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

// ListByEmailSince returns the email's attempts at or after since, newest first.
func (s *InMemoryStore) ListByEmailSince(_ context.Context, email string, since time.Time) ([]models.LoginAttempt, error) {
	return s.filter(func(a models.LoginAttempt) bool {
		return a.Email == email && !a.Timestamp.Before(since)
	}), nil
}

// ListFailuresBySourceSince returns failed attempts from source at or after since, newest first.
func (s *InMemoryStore) ListFailuresBySourceSince(_ context.Context, source string, since time.Time) ([]models.LoginAttempt, error) {
	return s.filter(func(a models.LoginAttempt) bool {
		return !a.Success && a.SourceAddress == source && !a.Timestamp.Before(since)
	}), nil
}

// SummarizeSources aggregates failures per source since the cutoff, keeping sources
// that failed against at least minAccounts distinct emails. Busiest first.
func (s *InMemoryStore) SummarizeSources(_ context.Context, since time.Time, minAccounts int) ([]models.SourceSummary, error) {
	failures := s.filter(func(a models.LoginAttempt) bool {
		return !a.Success && !a.Timestamp.Before(since)
	})
	type agg struct {
		summary models.SourceSummary
		emails  map[string]struct{}
	}
	bySource := make(map[string]*agg)
	for _, a := range failures {
		g, ok := bySource[a.SourceAddress]
		if !ok {
			g = &agg{
				summary: models.SourceSummary{
					SourceAddress:  a.SourceAddress,
					FirstFailureAt: a.Timestamp,
					LastFailureAt:  a.Timestamp,
				},
				emails: make(map[string]struct{}),
			}
			bySource[a.SourceAddress] = g
		}
		g.summary.Failures++
		g.emails[a.Email] = struct{}{}
		if a.Timestamp.Before(g.summary.FirstFailureAt) {
			g.summary.FirstFailureAt = a.Timestamp
		}
		if a.Timestamp.After(g.summary.LastFailureAt) {
			g.summary.LastFailureAt = a.Timestamp
		}
	}

	out := make([]models.SourceSummary, 0, len(bySource))
	for _, g := range bySource {
		g.summary.DistinctAccounts = len(g.emails)
		if g.summary.DistinctAccounts >= minAccounts {
			out = append(out, g.summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistinctAccounts != out[j].DistinctAccounts {
			return out[i].DistinctAccounts > out[j].DistinctAccounts
		}
		return out[i].SourceAddress < out[j].SourceAddress
	})
	return out, nil
}

func (s *InMemoryStore) filter(keep func(models.LoginAttempt) bool) []models.LoginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LoginAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if keep(s.attempts[i]) {
			out = append(out, s.attempts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
