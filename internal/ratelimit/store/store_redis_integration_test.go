//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"adminguard/internal/ratelimit/store"
	"adminguard/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestConcurrentIncrementsShareOneCounter() {
	ctx := context.Background()
	windowStart := time.Now().Truncate(time.Minute)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Increment(ctx, "rl:user:general", windowStart, time.Minute)
			s.NoError(err)
		}()
	}
	wg.Wait()

	n, err := s.store.Increment(ctx, "rl:user:general", windowStart, time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(51), n)
}

func (s *RedisStoreSuite) TestCounterExpiresWithItsWindow() {
	ctx := context.Background()
	windowStart := time.Now().Truncate(time.Minute)
	_, err := s.store.Increment(ctx, "rl:user:general", windowStart, time.Minute)
	s.Require().NoError(err)

	keys, err := s.redis.Client.Keys(ctx, "rl:user:general:*").Result()
	s.Require().NoError(err)
	s.Require().Len(keys, 1)

	ttl, err := s.redis.Client.PTTL(ctx, keys[0]).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Minute+time.Second)
}
