package models

import (
	"time"

	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/sentinel"
)

// Status is the stored session status. Expiry is derived from ExpiresAt, never stored.
type Status string

const (
	StatusCreated    Status = "created"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// State is the lifecycle position at a point in time: CREATED -> ACTIVE -> (EXPIRED | TERMINATED).
type State string

const (
	StateCreated    State = "CREATED"
	StateActive     State = "ACTIVE"
	StateExpired    State = "EXPIRED"
	StateTerminated State = "TERMINATED"
)

// Session is one device login's authorization context.
type Session struct {
	ID             id.SessionID `json:"id"`
	UserID         id.UserID    `json:"user_id"`
	DeviceID       string       `json:"device_id"`
	DeviceName     string       `json:"device_name"`
	SourceAddress  string       `json:"source_address"`
	Status         Status       `json:"status"`
	IssuedAt       time.Time    `json:"issued_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	TerminatedAt   *time.Time   `json:"terminated_at,omitempty"`
}

// NewSession builds a session in the CREATED state.
func NewSession(userID id.UserID, deviceID, deviceName, sourceAddress string, now time.Time, ttl time.Duration) (*Session, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a user")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session expiry must be after issuance")
	}
	return &Session{
		ID:             id.NewSessionID(),
		UserID:         userID,
		DeviceID:       deviceID,
		DeviceName:     deviceName,
		SourceAddress:  sourceAddress,
		Status:         StatusCreated,
		IssuedAt:       now,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
	}, nil
}

// State reports the lifecycle state at now. Expiry wins over any stored status.
func (s *Session) State(now time.Time) State {
	switch {
	case s.Status == StatusTerminated:
		return StateTerminated
	case !now.Before(s.ExpiresAt):
		return StateExpired
	case s.Status == StatusActive:
		return StateActive
	default:
		return StateCreated
	}
}

// IsActiveAt reports whether the session authorizes requests at now.
func (s *Session) IsActiveAt(now time.Time) bool {
	return s.State(now) == StateActive
}

// Activate moves CREATED to ACTIVE.
func (s *Session) Activate(now time.Time) error {
	if s.State(now) != StateCreated {
		return sentinel.ErrInvalidState
	}
	s.Status = StatusActive
	s.LastActivityAt = now
	return nil
}

// Terminate moves CREATED or ACTIVE to TERMINATED. Expired and terminated sessions are final.
func (s *Session) Terminate(now time.Time) error {
	switch s.State(now) {
	case StateCreated, StateActive:
		s.Status = StatusTerminated
		t := now
		s.TerminatedAt = &t
		return nil
	default:
		return sentinel.ErrInvalidState
	}
}

// Touch records activity. It never moves time backwards and never revives a session.
func (s *Session) Touch(now time.Time) bool {
	if !s.IsActiveAt(now) || !now.After(s.LastActivityAt) {
		return false
	}
	s.LastActivityAt = now
	return true
}

// Reapable reports whether the sweeper may drop the record: it stopped being usable
// before cutoff.
func (s *Session) Reapable(cutoff time.Time) bool {
	if s.TerminatedAt != nil && s.TerminatedAt.Before(cutoff) {
		return true
	}
	return s.ExpiresAt.Before(cutoff)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.TerminatedAt != nil {
		t := *s.TerminatedAt
		c.TerminatedAt = &t
	}
	return &c
}
