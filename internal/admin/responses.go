// Package admin holds the wire types of the admin HTTP surface.
package admin

import (
	"time"

	attempts "adminguard/internal/loginattempt/models"
)

// StatusRequest is the body of POST /admin/users/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended banned pending"`
}

// ExportRequest is the body of POST /admin/audit-logs/export.
type ExportRequest struct {
	From   time.Time `json:"from"   validate:"required"`
	To     time.Time `json:"to"     validate:"required"`
	Format string    `json:"format" validate:"omitempty,oneof=csv json"`
}

type TerminateResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

type TerminateAllResponse struct {
	UserID     string `json:"user_id"`
	Terminated int    `json:"terminated"`
}

type SecuritySourcesResponse struct {
	Window  string                   `json:"window"`
	Since   time.Time                `json:"since"`
	Sources []attempts.SourceSummary `json:"sources"`
}
