package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// history builds a newest-first history from oldest-first entries.
func history(entries ...LoginAttempt) []LoginAttempt {
	out := make([]LoginAttempt, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func fail(at time.Duration) LoginAttempt {
	return LoginAttempt{Timestamp: t0.Add(at), FailureReason: ReasonInvalidCredentials}
}

func locked(at time.Duration) LoginAttempt {
	return LoginAttempt{Timestamp: t0.Add(at), FailureReason: ReasonAccountLocked}
}

func ok(at time.Duration) LoginAttempt {
	return LoginAttempt{Timestamp: t0.Add(at), Success: true}
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()

	t.Run("five failures inside the window lock for the duration", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), fail(3*time.Minute), fail(4*time.Minute))
		state := p.Evaluate(h, t0.Add(5*time.Minute))
		assert.True(t, state.Locked)
		assert.Equal(t, t0.Add(34*time.Minute), state.LockedUntil)
		assert.Equal(t, 5, state.Streak)
	})

	t.Run("four failures do not lock", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), fail(3*time.Minute))
		assert.False(t, p.Evaluate(h, t0.Add(5*time.Minute)).Locked)
	})

	t.Run("failures spread wider than the window do not lock", func(t *testing.T) {
		h := history(fail(0), fail(4*time.Minute), fail(8*time.Minute), fail(12*time.Minute), fail(16*time.Minute))
		assert.False(t, p.Evaluate(h, t0.Add(17*time.Minute)).Locked)
	})

	t.Run("a success resets the streak", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), ok(3*time.Minute), fail(4*time.Minute), fail(5*time.Minute))
		state := p.Evaluate(h, t0.Add(6*time.Minute))
		assert.False(t, state.Locked)
		assert.Equal(t, 2, state.Streak)
	})

	t.Run("lock expires after the duration", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), fail(3*time.Minute), fail(4*time.Minute))
		assert.False(t, p.Evaluate(h, t0.Add(34*time.Minute)).Locked)
	})

	t.Run("attempts rejected by the lock do not extend it", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), fail(3*time.Minute), fail(4*time.Minute),
			locked(10*time.Minute), locked(20*time.Minute))
		state := p.Evaluate(h, t0.Add(21*time.Minute))
		assert.True(t, state.Locked)
		assert.Equal(t, t0.Add(34*time.Minute), state.LockedUntil)
	})

	t.Run("one failure after expiry does not relock", func(t *testing.T) {
		h := history(fail(0), fail(time.Minute), fail(2*time.Minute), fail(3*time.Minute), fail(4*time.Minute),
			fail(40*time.Minute))
		assert.False(t, p.Evaluate(h, t0.Add(41*time.Minute)).Locked)
	})
}

func TestFailuresWithin(t *testing.T) {
	h := history(fail(0), ok(time.Minute), fail(2*time.Minute), locked(3*time.Minute), fail(20*time.Minute))
	assert.Equal(t, 2, FailuresWithin(h, t0))
	assert.Equal(t, 1, FailuresWithin(h, t0.Add(10*time.Minute)))
}

func TestNewLoginAttempt(t *testing.T) {
	a, err := NewLoginAttempt("ops@example.com", "10.0.0.1", false, ReasonNone, t0)
	assert.NoError(t, err)
	assert.Equal(t, ReasonInvalidCredentials, a.FailureReason)

	a, err = NewLoginAttempt("ops@example.com", "10.0.0.1", true, ReasonInvalidMFA, t0)
	assert.NoError(t, err)
	assert.Equal(t, ReasonNone, a.FailureReason)

	_, err = NewLoginAttempt("", "10.0.0.1", true, ReasonNone, t0)
	assert.Error(t, err)
}
