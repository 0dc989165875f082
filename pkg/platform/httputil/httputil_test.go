package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteError(t *testing.T) {
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	t.Run("internal error hides its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(ctx, w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeEnvelope(t, w)
		assert.Equal(t, "internal_error", body.Code)
		assert.NotContains(t, body.Message, "db failed")
		assert.Equal(t, "req-42", body.RequestID)
	})

	t.Run("untyped errors are treated as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(ctx, w, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("validation error keeps its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(ctx, w, dErrors.New(dErrors.CodeValidation, "range exceeds 90 days"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeEnvelope(t, w)
		assert.Equal(t, "validation_error", body.Code)
		assert.Equal(t, "range exceeds 90 days", body.Message)
	})

	t.Run("account locked is indistinguishable from unauthenticated", func(t *testing.T) {
		locked := httptest.NewRecorder()
		WriteError(ctx, locked, dErrors.New(dErrors.CodeAccountLocked, "invalid email or password"))
		wrong := httptest.NewRecorder()
		WriteError(ctx, wrong, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))

		assert.Equal(t, wrong.Code, locked.Code)
		assert.Equal(t, wrong.Body.String(), locked.Body.String())
	})

	t.Run("rate limited sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(ctx, w, dErrors.RateLimited("rate limit exceeded", 1500*time.Millisecond))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com"}`))
		var p payload
		require.NoError(t, DecodeJSON(r, &p))
		assert.Equal(t, "a@example.com", p.Email)
	})

	t.Run("failed validation", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
		var p payload
		err := DecodeJSON(r, &p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com","admin":true}`))
		var p payload
		assert.True(t, dErrors.HasCode(DecodeJSON(r, &p), dErrors.CodeValidation))
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		var p payload
		assert.True(t, dErrors.HasCode(DecodeJSON(r, &p), dErrors.CodeValidation))
	})
}
