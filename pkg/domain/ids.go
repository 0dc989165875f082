package domain

import (
	"github.com/google/uuid"

	dErrors "adminguard/pkg/domain-errors"
)

// Typed identifiers. Distinct named types keep a SessionID from being passed where a
// UserID is expected; construct them with the Parse functions at trust boundaries.
type (
	UserID         uuid.UUID
	SessionID      uuid.UUID
	AuditRecordID  uuid.UUID
	LoginAttemptID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id AuditRecordID) String() string  { return uuid.UUID(id).String() }
func (id LoginAttemptID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID, NewSessionID, NewAuditRecordID and NewLoginAttemptID mint random identifiers.
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewAuditRecordID() AuditRecordID   { return AuditRecordID(uuid.New()) }
func NewLoginAttemptID() LoginAttemptID { return LoginAttemptID(uuid.New()) }

// ParseUserID parses a user id from external input.
// Errors: CodeInvalidInput for empty, malformed or nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseSessionID parses a session id from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// ParseAuditRecordID parses an audit record id from external input.
func ParseAuditRecordID(s string) (AuditRecordID, error) {
	u, err := parseUUID(s, "audit record id")
	return AuditRecordID(u), err
}

// ParseLoginAttemptID parses a login attempt id from external input.
func ParseLoginAttemptID(s string) (LoginAttemptID, error) {
	u, err := parseUUID(s, "login attempt id")
	return LoginAttemptID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// Text marshaling keeps typed ids as canonical UUID strings in JSON and Redis payloads.

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *SessionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AuditRecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *AuditRecordID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id LoginAttemptID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *LoginAttemptID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
