package store

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 1024

type windowCount struct {
	windowStart time.Time
	count       int64
}

// InMemoryStore counts fixed windows in process. Counts are not shared across
// instances, so multi-instance deployments should use RedisStore.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCount
	ops      int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counters: make(map[string]*windowCount)}
}

// Increment adds one to key's count for the window starting at windowStart.
func (s *InMemoryStore) Increment(_ context.Context, key string, windowStart time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops++
	if s.ops%pruneEvery == 0 {
		s.prune(windowStart)
	}

	c, ok := s.counters[key]
	if !ok || !c.windowStart.Equal(windowStart) {
		c = &windowCount{windowStart: windowStart}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// prune drops counters from earlier windows. Must be called with s.mu held.
func (s *InMemoryStore) prune(current time.Time) {
	for key, c := range s.counters {
		if c.windowStart.Before(current) {
			delete(s.counters, key)
		}
	}
}
