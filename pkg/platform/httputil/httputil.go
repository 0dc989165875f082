// Package httputil writes JSON responses and the uniform error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorBody is the public error envelope: {"error":{"code","message","requestId"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and writes the error envelope. Internal errors never
// expose their message. Account lockout is rendered exactly like an authentication failure.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	de, ok := dErrors.From(err)
	if !ok {
		de = dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	status, code := statusFor(de.Code)
	message := de.Message
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	if de.Code == dErrors.CodeRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(de.RetryAfter)))
	}

	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestcontext.RequestID(ctx),
	}})
}

func statusFor(code dErrors.Code) (int, string) {
	switch code {
	case dErrors.CodeUnauthorized, dErrors.CodeAccountLocked:
		return http.StatusUnauthorized, string(dErrors.CodeUnauthorized)
	case dErrors.CodeForbidden:
		return http.StatusForbidden, string(dErrors.CodeForbidden)
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests, string(dErrors.CodeRateLimited)
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest, string(dErrors.CodeValidation)
	case dErrors.CodeNotFound:
		return http.StatusNotFound, string(dErrors.CodeNotFound)
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict, string(dErrors.CodeConflict)
	default:
		return http.StatusInternalServerError, string(dErrors.CodeInternal)
	}
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// DecodeJSON reads a JSON body into dst and runs struct validation tags on it.
// Errors: CodeValidation for malformed bodies, unknown fields or failed validation.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeValidation, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body")
	}
	return Validate(dst)
}

// Validate runs validator tags on v and folds field errors into one message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(parts, "; "))
}
