package models

import "time"

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	Device        string    `json:"device"`
	SourceAddress string    `json:"source_address,omitempty"`
	State         State     `json:"state"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastActivity  time.Time `json:"last_activity"`
	IsCurrent     bool      `json:"is_current"`
}

type SessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// Summarize renders s for a listing at now; current marks the caller's own session.
func Summarize(s *Session, now time.Time, current bool) SessionSummary {
	return SessionSummary{
		SessionID:     s.ID.String(),
		UserID:        s.UserID.String(),
		Device:        s.DeviceName,
		SourceAddress: s.SourceAddress,
		State:         s.State(now),
		IssuedAt:      s.IssuedAt,
		ExpiresAt:     s.ExpiresAt,
		LastActivity:  s.LastActivityAt,
		IsCurrent:     current,
	}
}
