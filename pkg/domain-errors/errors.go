// Package domainerrors defines the error taxonomy shared by services and transport.
//
// Services return *Error values (or wrap store errors into them); the HTTP layer maps the
// Code to a status and to the public envelope. Messages on CodeInternal are never shown to
// callers.
package domainerrors

import (
	"errors"
	"time"
)

// Code classifies a domain error.
type Code string

const (
	CodeUnauthorized       Code = "unauthenticated"
	CodeForbidden          Code = "forbidden"
	CodeAccountLocked      Code = "account_locked"
	CodeRateLimited        Code = "rate_limited"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a classified domain error.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfter is set on CodeRateLimited errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap classifies err under code. A nil err still yields an error so callers can wrap
// unconditionally in error paths.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// RateLimited creates a CodeRateLimited error carrying a retry-after hint.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// From extracts the outermost *Error from err's chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err's outermost domain error has the given code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}
