package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CountsPerWindow(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	w0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		n, err := s.Increment(ctx, "rl:a:general", w0, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err := s.Increment(ctx, "rl:a:general", w0.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a new window starts from zero")

	n, err = s.Increment(ctx, "rl:b:general", w0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "keys are independent")
}

func TestInMemoryStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	w0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "rl:a:general", w0, time.Minute)
		}()
	}
	wg.Wait()

	n, err := s.Increment(ctx, "rl:a:general", w0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(101), n)
}
