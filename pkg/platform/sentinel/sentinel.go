package sentinel

import "errors"

// Sentinel errors for store facts. Session, login-attempt, audit and counter stores return
// these (optionally wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: no record under the key
//   - ErrConflict: create-if-absent found an existing record
//   - ErrExpired: the record exists but its lifetime has passed
//   - ErrInvalidState: the record cannot make the requested transition (e.g. already terminated)
//   - ErrUnavailable: the backing store could not be reached
//
// Validation failures belong in pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
