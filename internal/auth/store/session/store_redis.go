package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"adminguard/internal/auth/models"
	id "adminguard/pkg/domain"
	"adminguard/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"

	// Records outlive expiry so the sweeper and the admin listing can still see them.
	defaultRetention = 24 * time.Hour
	maxTxRetries     = 3
	scanBatch        = 200
)

// RedisStore is the shared session store for multi-instance deployments.
// Mutations run under WATCH so concurrent writers cannot lose updates.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRetention sets how long records are kept past expiry.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: defaultRetention}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func userSessionsKey(userID id.UserID) string {
	return userSessionKeyPrefix + userID.String()
}

func (s *RedisStore) ttlFor(session *models.Session, now time.Time) time.Duration {
	ttl := session.ExpiresAt.Add(s.retention).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Create writes the session and indexes it under its user.
func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)
	userKey := userSessionsKey(session.UserID)
	ttl := s.ttlFor(session, session.IssuedAt)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			pipe.SAdd(ctx, userKey, session.ID.String())
			pipe.Expire(ctx, userKey, ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.get(ctx, s.client, sessionKey(sessionID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, key string) (*models.Session, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// ListByUser returns the user's sessions oldest first, pruning index entries whose
// record has already been evicted.
func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	userKey := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	if len(members) == 0 {
		return []*models.Session{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = sessionKeyPrefix + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load user sessions: %w", err)
	}

	out := make([]*models.Session, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var session models.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, &session)
	}
	if len(stale) > 0 {
		// best effort; the next listing retries
		_ = s.client.SRem(ctx, userKey, stale...).Err()
	}
	sortOldestFirst(out)
	return out, nil
}

// Touch records activity. A concurrent writer winning the WATCH race is not an error:
// activity tracking is best effort.
func (s *RedisStore) Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	key := sessionKey(sessionID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		session, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if !session.Touch(at) {
			return nil
		}
		payload, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true, Mode: "XX"})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}

// Terminate ends the session, retrying when another writer modified it concurrently.
func (s *RedisStore) Terminate(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	key := sessionKey(sessionID)
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			session, err := s.get(ctx, tx, key)
			if err != nil {
				return err
			}
			if err := session.Terminate(at); err != nil {
				return err
			}
			payload, err := json.Marshal(session)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true, Mode: "XX"})
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("terminate session: %w", err)
}

// DeleteReapable removes sessions that stopped being usable before cutoff.
func (s *RedisStore) DeleteReapable(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		session, err := s.get(ctx, s.client, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		if !session.Reapable(cutoff) {
			continue
		}
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, userSessionsKey(session.UserID), session.ID.String())
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("delete session: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan sessions: %w", err)
	}
	return deleted, nil
}

// UserIDs lists users with an index entry.
func (s *RedisStore) UserIDs(ctx context.Context) ([]id.UserID, error) {
	var out []id.UserID
	iter := s.client.Scan(ctx, 0, userSessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		userID, err := id.ParseUserID(iter.Val()[len(userSessionKeyPrefix):])
		if err != nil {
			continue
		}
		out = append(out, userID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan user sessions: %w", err)
	}
	return out, nil
}
