package models

import (
	"time"

	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
)

// FailureReason says why an attempt failed. Never shown to the client.
type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonInvalidCredentials FailureReason = "invalid_credentials"
	ReasonAccountLocked      FailureReason = "account_locked"
	ReasonAccountInactive    FailureReason = "account_inactive"
	ReasonMFARequired        FailureReason = "mfa_required"
	ReasonInvalidMFA         FailureReason = "invalid_mfa"
)

// CountsTowardLockout reports whether a failure with this reason extends the streak.
// Attempts rejected by an active lock do not.
func (r FailureReason) CountsTowardLockout() bool {
	return r != ReasonAccountLocked
}

// LoginAttempt is one append-only authentication attempt. The history is the
// authoritative source for lockout decisions.
type LoginAttempt struct {
	ID            id.LoginAttemptID `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Email         string            `json:"email"`
	SourceAddress string            `json:"source_address"`
	Success       bool              `json:"success"`
	FailureReason FailureReason     `json:"failure_reason,omitempty"`
}

func NewLoginAttempt(email, sourceAddress string, success bool, reason FailureReason, now time.Time) (*LoginAttempt, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "login attempt requires an email")
	}
	if success {
		reason = ReasonNone
	} else if reason == ReasonNone {
		reason = ReasonInvalidCredentials
	}
	return &LoginAttempt{
		ID:            id.NewLoginAttemptID(),
		Timestamp:     now,
		Email:         email,
		SourceAddress: sourceAddress,
		Success:       success,
		FailureReason: reason,
	}, nil
}

// SourceSummary aggregates failures from one source address.
type SourceSummary struct {
	SourceAddress    string    `json:"source_address"`
	Failures         int       `json:"failures"`
	DistinctAccounts int       `json:"distinct_accounts"`
	FirstFailureAt   time.Time `json:"first_failure_at"`
	LastFailureAt    time.Time `json:"last_failure_at"`
}
