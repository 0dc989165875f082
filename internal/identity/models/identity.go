package models

import (
	"strings"
	"time"

	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	emailutil "adminguard/pkg/email"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusPending   Status = "pending"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid account status")
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBanned, StatusPending:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Identity is an administrative account as seen by the credential store.
type Identity struct {
	ID                  id.UserID
	Email               string
	DisplayName         string
	Role                permission.Role
	PermissionOverrides permission.Set
	Status              Status
	PasswordHash        string
	MFAEnabled          bool
	MFASecret           string

	// FailedAttemptCount and LockedUntil cache the login-attempt history; the history wins.
	FailedAttemptCount int
	LockedUntil        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail is the canonical form used for lookups and attempt tracking.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewIdentity creates an active identity. An empty displayName is derived from the email.
func NewIdentity(email, displayName string, role permission.Role, passwordHash string, now time.Time) (*Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity requires a valid email")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity requires a valid role")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity requires a password hash")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = emailutil.DisplayName(email)
	}
	return &Identity{
		ID:           id.NewUserID(),
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		Status:       StatusActive,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (i *Identity) GrantedRole() permission.Role {
	if i == nil {
		return ""
	}
	return i.Role
}

func (i *Identity) GrantedOverrides() permission.Set {
	if i == nil {
		return 0
	}
	return i.PermissionOverrides
}

func (i *Identity) IsActive() bool {
	return i != nil && i.Status == StatusActive
}

// CanTransitionTo enforces the account-status lifecycle. Banned is terminal and nothing
// returns to pending.
func (i *Identity) CanTransitionTo(next Status) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid account status")
	}
	if i.Status == next {
		return nil
	}
	switch {
	case i.Status == StatusBanned:
		return dErrors.New(dErrors.CodeInvariantViolation, "banned accounts cannot change status")
	case next == StatusPending:
		return dErrors.New(dErrors.CodeInvariantViolation, "accounts cannot return to pending")
	}
	return nil
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Status             *Status
	FailedAttemptCount *int
	LockedUntil        *time.Time
	ClearLockedUntil   bool
}

// Apply mutates i with p.
func (i *Identity) Apply(p Patch, now time.Time) {
	if p.Status != nil {
		i.Status = *p.Status
	}
	if p.FailedAttemptCount != nil {
		i.FailedAttemptCount = *p.FailedAttemptCount
	}
	switch {
	case p.ClearLockedUntil:
		i.LockedUntil = nil
	case p.LockedUntil != nil:
		t := *p.LockedUntil
		i.LockedUntil = &t
	}
	i.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a store.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.LockedUntil != nil {
		t := *i.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}
