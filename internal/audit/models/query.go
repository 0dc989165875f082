package models

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	MaxExportSpan   = 90 * 24 * time.Hour
)

// Filter narrows a query. Zero fields match everything; From is inclusive, To exclusive.
type Filter struct {
	ActorID      id.UserID
	Action       Action
	ResourceType ResourceType
	ResourceID   string
	From         time.Time
	To           time.Time
}

func (f Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	if f.Action != "" && !f.Action.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit action")
	}
	return nil
}

// Matches applies the filter to one record.
func (f Filter) Matches(r Record) bool {
	switch {
	case !f.ActorID.IsNil() && r.ActorID != f.ActorID:
		return false
	case f.Action != "" && r.Action != f.Action:
		return false
	case f.ResourceType != "" && r.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && r.ResourceID != f.ResourceID:
		return false
	case !f.From.IsZero() && r.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && !r.Timestamp.Before(f.To):
		return false
	}
	return true
}

// Cursor marks the last record of a page; the next page starts strictly after it.
type Cursor struct {
	Timestamp time.Time
	ID        id.AuditRecordID
}

// After reports whether r comes after the cursor in timestamp-descending order.
func (c Cursor) After(r Record) bool {
	return r.Before(Record{Timestamp: c.Timestamp, ID: c.ID})
}

// CursorFor is the cursor positioned on r.
func CursorFor(r Record) Cursor {
	return Cursor{Timestamp: r.Timestamp, ID: r.ID}
}

// Encode renders the cursor as an opaque token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.Timestamp.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid cursor")
	}
	nanos, rawID, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid cursor")
	}
	recordID, err := id.ParseAuditRecordID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid cursor")
	}
	return &Cursor{Timestamp: time.Unix(0, n).UTC(), ID: recordID}, nil
}

// Page requests one page of results.
type Page struct {
	Limit  int
	Cursor string
}

// Size clamps the requested limit to [1, MaxPageSize], defaulting to DefaultPageSize.
func (p Page) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultPageSize
	case p.Limit > MaxPageSize:
		return MaxPageSize
	}
	return p.Limit
}

// PageResult is one page of records, newest first. NextCursor is empty on the last page.
type PageResult struct {
	Records    []Record `json:"records"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "format must be csv or json")
}

// ContentType is the media type of an export in this format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}
