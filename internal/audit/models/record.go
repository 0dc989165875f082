// Package models holds the append-only audit record and its query types.
package models

import (
	"time"

	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
)

// Action is the closed set of privileged actions that leave an audit record.
type Action string

const (
	ActionSessionsListed        Action = "sessions.list"
	ActionSessionTerminated     Action = "session.terminate"
	ActionUserSessionsRevoked   Action = "user.sessions_terminate"
	ActionUserStatusChanged     Action = "user.status_change"
	ActionAuditLogsQueried      Action = "audit_logs.query"
	ActionAuditLogsExported     Action = "audit_logs.export"
	ActionSecuritySourcesViewed Action = "security_sources.view"
	ActionAdminLogin            Action = "auth.admin_login"
	ActionLogout                Action = "auth.logout"
)

var actions = map[Action]struct{}{
	ActionSessionsListed:        {},
	ActionSessionTerminated:     {},
	ActionUserSessionsRevoked:   {},
	ActionUserStatusChanged:     {},
	ActionAuditLogsQueried:      {},
	ActionAuditLogsExported:     {},
	ActionSecuritySourcesViewed: {},
	ActionAdminLogin:            {},
	ActionLogout:                {},
}

func (a Action) IsValid() bool {
	_, ok := actions[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}

// ParseAction constructs an Action from a query parameter.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown audit action")
	}
	return a, nil
}

// ResourceType names the kind of object an action touched.
type ResourceType string

const (
	ResourceSession        ResourceType = "session"
	ResourceUser           ResourceType = "user"
	ResourceAuditLog       ResourceType = "audit_log"
	ResourceSecuritySource ResourceType = "security_source"
)

// Outcome is the result status the pipeline stamps on each record.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePanic   Outcome = "panic"
)

// Detail keys written by the pipeline.
const (
	DetailOutcome   = "outcome"
	DetailErrorCode = "error_code"
)

// Entry is what callers hand to the recorder. Context-derived fields left empty are
// filled from the request context.
type Entry struct {
	ActorID       id.UserID
	ActorEmail    string
	Action        Action
	ResourceType  ResourceType
	ResourceID    string
	Details       map[string]any
	SourceAddress string
	SessionID     id.SessionID
	RequestID     string
}

// Record is one immutable audit log row.
type Record struct {
	ID            id.AuditRecordID `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	ActorID       id.UserID        `json:"actor_id"`
	ActorEmail    string           `json:"actor_email"`
	Action        Action           `json:"action"`
	ResourceType  ResourceType     `json:"resource_type"`
	ResourceID    string           `json:"resource_id,omitempty"`
	Details       map[string]any   `json:"details"`
	SourceAddress string           `json:"source_address"`
	SessionID     id.SessionID     `json:"session_id"`
	RequestID     string           `json:"request_id,omitempty"`
}

// NewRecord stamps an entry with a fresh id and timestamp.
func NewRecord(e Entry, now time.Time) (*Record, error) {
	if !e.Action.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown audit action")
	}
	if e.ResourceType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "audit resource type is required")
	}
	details := make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &Record{
		ID:            id.NewAuditRecordID(),
		Timestamp:     now.UTC(),
		ActorID:       e.ActorID,
		ActorEmail:    e.ActorEmail,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Details:       details,
		SourceAddress: e.SourceAddress,
		SessionID:     e.SessionID,
		RequestID:     e.RequestID,
	}, nil
}

// Before reports whether r sorts after o in timestamp-descending order.
func (r Record) Before(o Record) bool {
	if !r.Timestamp.Equal(o.Timestamp) {
		return r.Timestamp.Before(o.Timestamp)
	}
	return r.ID.String() < o.ID.String()
}
