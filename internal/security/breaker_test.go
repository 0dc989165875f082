package security_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"adminguard/internal/platform/logger"
	"adminguard/internal/security"
	"adminguard/pkg/platform/circuit"
)

func TestBreakerSink_SkipsWhileOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := &recordingSink{err: errors.New("broker down")}
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	sink := security.NewBreakerSink(inner, breaker, nil)
	batch := []security.Event{{ID: "e1"}}
	ctx := context.Background()

	assert.Error(t, sink.Write(ctx, batch))
	assert.Error(t, sink.Write(ctx, batch))
	assert.True(t, breaker.IsOpen())
	assert.ErrorIs(t, sink.Write(ctx, batch), security.ErrSinkOpen)
	assert.Equal(t, 2, inner.count())

	now = now.Add(time.Minute)
	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()
	assert.NoError(t, sink.Write(ctx, batch))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, "recording", sink.Name())
}

func TestBreakerSink_BrokerRecovery(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	broker := &recordingSink{err: errors.New("leader not available")}
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(2),
		circuit.WithCooldown(30*time.Second),
		circuit.WithClock(func() time.Time { return now }),
	)
	var logs strings.Builder
	sink := security.NewBreakerSink(broker, breaker, logger.NewWithWriter(&logs, "info"))
	ctx := context.Background()
	batch := []security.Event{{ID: "lock-1", Type: security.EventAccountLocked}}

	assert.Error(t, sink.Write(ctx, batch))
	assert.Contains(t, logs.String(), "security sink circuit opened")

	now = now.Add(30 * time.Second)
	assert.Error(t, sink.Write(ctx, batch), "retry after cooldown still fails")
	assert.ErrorIs(t, sink.Write(ctx, batch), security.ErrSinkOpen, "failed retry restarts the cooldown")
	assert.Equal(t, 2, broker.count())

	broker.mu.Lock()
	broker.err = nil
	broker.mu.Unlock()
	now = now.Add(30 * time.Second)
	assert.NoError(t, sink.Write(ctx, batch))
	assert.True(t, breaker.IsOpen(), "one delivery is not a recovery")
	assert.NoError(t, sink.Write(ctx, batch))
	assert.False(t, breaker.IsOpen())
	assert.Contains(t, logs.String(), "security sink circuit closed")
	assert.Equal(t, 4, broker.count())
}
