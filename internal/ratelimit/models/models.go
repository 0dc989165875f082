package models

import (
	"time"

	"adminguard/internal/permission"
)

// Class is the bucket a ceiling is keyed on: a permission name, the general bucket for
// routes without a permission requirement, or bulk_export.
type Class string

const (
	ClassGeneral    Class = "general"
	ClassBulkExport Class = "bulk_export"
)

// ClassFor is the class guarding routes that require p.
func ClassFor(p permission.Permission) Class {
	return Class(p.String())
}

// IsValid accepts the fixed classes and any permission name.
func (c Class) IsValid() bool {
	switch c {
	case ClassGeneral, ClassBulkExport:
		return true
	}
	_, err := permission.ParsePermission(string(c))
	return err == nil
}

func (c Class) String() string {
	return string(c)
}

// Tier names the ceiling that applied: a role, "anonymous" or "bulk_export".
type Tier string

const (
	TierAnonymous  Tier = "anonymous"
	TierBulkExport Tier = "bulk_export"
)

// Result is the outcome of one check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Tier       Tier          `json:"tier"`
}

// WindowStart aligns now to the start of its fixed window.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
