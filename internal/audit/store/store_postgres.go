package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"adminguard/internal/audit/models"
	id "adminguard/pkg/domain"
)

// PostgresStore persists records in the append-only audit_records table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, record *models.Record) error {
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	query := `
		INSERT INTO audit_records (
			id, occurred_at, actor_id, actor_email, action, resource_type,
			resource_id, details, source_address, session_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.Timestamp,
		nullUUID(uuid.UUID(record.ActorID)),
		record.ActorEmail,
		string(record.Action),
		string(record.ResourceType),
		sql.NullString{String: record.ResourceID, Valid: record.ResourceID != ""},
		string(details),
		record.SourceAddress,
		nullUUID(uuid.UUID(record.SessionID)),
		record.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Query builds the WHERE clause from the non-zero filter fields. Keyset pagination runs on
// (occurred_at, id), which matches the audit_records_time_idx index.
func (s *PostgresStore) Query(ctx context.Context, filter models.Filter, after *models.Cursor, limit int) ([]models.Record, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.ActorID.IsNil() {
		conds = append(conds, "actor_id = "+arg(uuid.UUID(filter.ActorID)))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(string(filter.Action)))
	}
	if filter.ResourceType != "" {
		conds = append(conds, "resource_type = "+arg(string(filter.ResourceType)))
	}
	if filter.ResourceID != "" {
		conds = append(conds, "resource_id = "+arg(filter.ResourceID))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "occurred_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "occurred_at < "+arg(filter.To))
	}
	if after != nil {
		ts := arg(after.Timestamp)
		cid := arg(uuid.UUID(after.ID))
		conds = append(conds, fmt.Sprintf("(occurred_at, id) < (%s, %s)", ts, cid))
	}

	query := `
		SELECT id, occurred_at, actor_id, actor_email, action, resource_type,
		       resource_id, details, source_address, session_id, request_id
		FROM audit_records`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY occurred_at DESC, id DESC\n\t\tLIMIT " + arg(limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	out := []models.Record{}
	for rows.Next() {
		var (
			r          models.Record
			rawID      uuid.UUID
			actorID    uuid.NullUUID
			sessionID  uuid.NullUUID
			resourceID sql.NullString
			action     string
			resource   string
			details    []byte
		)
		err := rows.Scan(&rawID, &r.Timestamp, &actorID, &r.ActorEmail, &action, &resource,
			&resourceID, &details, &r.SourceAddress, &sessionID, &r.RequestID)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.ID = id.AuditRecordID(rawID)
		r.Timestamp = r.Timestamp.UTC()
		r.ActorID = id.UserID(actorID.UUID)
		r.SessionID = id.SessionID(sessionID.UUID)
		r.Action = models.Action(action)
		r.ResourceType = models.ResourceType(resource)
		r.ResourceID = resourceID.String
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
