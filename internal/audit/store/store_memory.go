package store

import (
	"context"
	"slices"
	"sync"

	"adminguard/internal/audit/models"
)

// InMemoryStore keeps records in a slice. Records are never updated or removed.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

// Query returns up to limit records matching filter, newest first, strictly after the cursor.
func (s *InMemoryStore) Query(_ context.Context, filter models.Filter, after *models.Cursor, limit int) ([]models.Record, error) {
	s.mu.RLock()
	matched := make([]models.Record, 0, min(limit, len(s.records)))
	for _, r := range s.records {
		if !filter.Matches(r) {
			continue
		}
		if after != nil && !after.After(r) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b models.Record) int {
		switch {
		case b.Before(a):
			return -1
		case a.Before(b):
			return 1
		}
		return 0
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Len is the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
