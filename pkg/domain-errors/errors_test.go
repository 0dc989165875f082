package domainerrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost domain error through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeForbidden, "missing permission"))
		assert.True(t, HasCode(err, CodeForbidden))
		assert.False(t, HasCode(err, CodeUnauthorized))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "store unavailable")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "store unavailable: connection refused", err.Error())
	})
}

func TestRateLimited(t *testing.T) {
	err := RateLimited("slow down", 12*time.Second)
	de, ok := From(fmt.Errorf("ctx: %w", err))
	require.True(t, ok)
	assert.Equal(t, CodeRateLimited, de.Code)
	assert.Equal(t, 12*time.Second, de.RetryAfter)
}
