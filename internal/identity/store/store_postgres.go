package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"adminguard/internal/identity/credentials"
	"adminguard/internal/identity/models"
	"adminguard/internal/permission"
	"adminguard/internal/platform/postgres"
	id "adminguard/pkg/domain"
	"adminguard/pkg/platform/sentinel"
	"adminguard/pkg/requestcontext"
)

// PostgresStore persists identities in the identities table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `id, email, display_name, role, permission_overrides, status, password_hash,
	mfa_enabled, mfa_secret, failed_attempt_count, locked_until, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, identity *models.Identity) error {
	query := `INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		models.NormalizeEmail(identity.Email),
		identity.DisplayName,
		identity.Role.String(),
		pq.Array(identity.PermissionOverrides.Strings()),
		identity.Status.String(),
		identity.PasswordHash,
		identity.MFAEnabled,
		sql.NullString{String: identity.MFASecret, Valid: identity.MFASecret != ""},
		identity.FailedAttemptCount,
		identity.LockedUntil,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, models.NormalizeEmail(email))
	return scanIdentity(row)
}

func (s *PostgresStore) GetIdentityByID(ctx context.Context, userID id.UserID) (*models.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, uuid.UUID(userID))
	return scanIdentity(row)
}

func (s *PostgresStore) VerifyPassword(identity *models.Identity, plaintext string) bool {
	if identity == nil {
		credentials.EqualizeTiming(plaintext)
		return false
	}
	return credentials.CheckPassword(identity.PasswordHash, plaintext)
}

// UpdateIdentity applies patch in one statement so concurrent patches never interleave.
func (s *PostgresStore) UpdateIdentity(ctx context.Context, userID id.UserID, patch models.Patch) (*models.Identity, error) {
	var status sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: patch.Status.String(), Valid: true}
	}
	var count sql.NullInt64
	if patch.FailedAttemptCount != nil {
		count = sql.NullInt64{Int64: int64(*patch.FailedAttemptCount), Valid: true}
	}
	var lockedUntil sql.NullTime
	if patch.LockedUntil != nil {
		lockedUntil = sql.NullTime{Time: *patch.LockedUntil, Valid: true}
	}

	query := `UPDATE identities SET
			status = COALESCE($2, status),
			failed_attempt_count = COALESCE($3, failed_attempt_count),
			locked_until = CASE WHEN $4 THEN NULL ELSE COALESCE($5, locked_until) END,
			updated_at = $6
		WHERE id = $1
		RETURNING ` + identityColumns
	row := s.db.QueryRowContext(ctx, query,
		uuid.UUID(userID), status, count, patch.ClearLockedUntil, lockedUntil, requestcontext.Now(ctx))
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*models.Identity, error) {
	var (
		identity    models.Identity
		rawID       uuid.UUID
		role        string
		overrides   []string
		status      string
		mfaSecret   sql.NullString
		lockedUntil sql.NullTime
	)
	err := row.Scan(&rawID, &identity.Email, &identity.DisplayName, &role, pq.Array(&overrides), &status,
		&identity.PasswordHash, &identity.MFAEnabled, &mfaSecret, &identity.FailedAttemptCount, &lockedUntil,
		&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.ID = id.UserID(rawID)
	identity.Role = permission.Role(role)
	identity.Status = models.Status(status)
	identity.MFASecret = mfaSecret.String
	if lockedUntil.Valid {
		t := lockedUntil.Time
		identity.LockedUntil = &t
	}
	set, err := permission.ParseSet(overrides)
	if err != nil {
		return nil, fmt.Errorf("identity %s overrides: %w", rawID, err)
	}
	identity.PermissionOverrides = set
	return &identity, nil
}
