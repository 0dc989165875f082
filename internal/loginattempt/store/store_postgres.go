package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adminguard/internal/loginattempt/models"
	id "adminguard/pkg/domain"
)

// PostgresStore persists attempts in the append-only login_attempts table.
// This store is pure I/O; lockout rules live in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (id, attempted_at, email, source_address, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var reason sql.NullString
	if attempt.FailureReason != models.ReasonNone {
		reason = sql.NullString{String: string(attempt.FailureReason), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(attempt.ID),
		attempt.Timestamp,
		attempt.Email,
		attempt.SourceAddress,
		attempt.Success,
		reason,
	)
	if err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEmailSince(ctx context.Context, email string, since time.Time) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, attempted_at, email, source_address, success, failure_reason
		FROM login_attempts
		WHERE email = $1 AND attempted_at >= $2
		ORDER BY attempted_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, email, since)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *PostgresStore) ListFailuresBySourceSince(ctx context.Context, source string, since time.Time) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, attempted_at, email, source_address, success, failure_reason
		FROM login_attempts
		WHERE source_address = $1 AND success = FALSE AND attempted_at >= $2
		ORDER BY attempted_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, source, since)
	if err != nil {
		return nil, fmt.Errorf("query source failures: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *PostgresStore) SummarizeSources(ctx context.Context, since time.Time, minAccounts int) ([]models.SourceSummary, error) {
	query := `
		SELECT source_address,
		       COUNT(*),
		       COUNT(DISTINCT email),
		       MIN(attempted_at),
		       MAX(attempted_at)
		FROM login_attempts
		WHERE success = FALSE AND attempted_at >= $1
		GROUP BY source_address
		HAVING COUNT(DISTINCT email) >= $2
		ORDER BY COUNT(DISTINCT email) DESC, source_address
	`
	rows, err := s.db.QueryContext(ctx, query, since, minAccounts)
	if err != nil {
		return nil, fmt.Errorf("summarize sources: %w", err)
	}
	defer rows.Close()

	out := []models.SourceSummary{}
	for rows.Next() {
		var sum models.SourceSummary
		if err := rows.Scan(&sum.SourceAddress, &sum.Failures, &sum.DistinctAccounts, &sum.FirstFailureAt, &sum.LastFailureAt); err != nil {
			return nil, fmt.Errorf("scan source summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source summaries: %w", err)
	}
	return out, nil
}

func scanAttempts(rows *sql.Rows) ([]models.LoginAttempt, error) {
	var out []models.LoginAttempt
	for rows.Next() {
		var (
			a      models.LoginAttempt
			rawID  uuid.UUID
			reason sql.NullString
		)
		if err := rows.Scan(&rawID, &a.Timestamp, &a.Email, &a.SourceAddress, &a.Success, &reason); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		a.ID = id.LoginAttemptID(rawID)
		a.FailureReason = models.FailureReason(reason.String)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}
	return out, nil
}
