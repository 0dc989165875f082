// Package security streams security signals (lockouts, suspicious sources, rate-limit
// denials) to operators. Signals are detection only; nothing here blocks a request.
package security

import (
	"context"
	"time"

	"github.com/google/uuid"

	"adminguard/pkg/requestcontext"
)

type EventType string

const (
	EventAccountLocked    EventType = "account_locked"
	EventSuspiciousSource EventType = "suspicious_source"
	EventRateLimited      EventType = "rate_limited"
	EventAuditWriteFailed EventType = "audit_write_failed"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one security signal. Subject is the email, user id or source address the
// signal is about and doubles as the partition key.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Severity      Severity       `json:"severity"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Subject       string         `json:"subject"`
	SourceAddress string         `json:"source_address,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewEvent stamps an event with the request clock, source address and request id.
func NewEvent(ctx context.Context, typ EventType, severity Severity, subject string, details map[string]any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		Severity:      severity,
		OccurredAt:    requestcontext.Now(ctx),
		Subject:       subject,
		SourceAddress: requestcontext.ClientIP(ctx),
		RequestID:     requestcontext.RequestID(ctx),
		Details:       details,
	}
}

// Publisher accepts security events. Implementations never block the caller on I/O.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
