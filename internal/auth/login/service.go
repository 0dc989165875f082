// Package login authenticates administrators with password and optional TOTP, records every
// attempt, and opens a session with a token pair on success.
//
// The lockout check runs before password verification, and every rejection path costs
// one bcrypt comparison and returns the same wording, so a caller cannot tell a locked
// account from a wrong password or an unknown email.
package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"adminguard/internal/auth/models"
	"adminguard/internal/auth/token"
	identity "adminguard/internal/identity/models"
	attempts "adminguard/internal/loginattempt/models"
	id "adminguard/pkg/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CredentialStore,AttemptTracker

// CredentialStore reads identities and verifies passwords. VerifyPassword with a nil
// identity still performs one hash comparison.
type CredentialStore interface {
	GetIdentityByEmail(ctx context.Context, email string) (*identity.Identity, error)
	GetIdentityByID(ctx context.Context, userID id.UserID) (*identity.Identity, error)
	VerifyPassword(ident *identity.Identity, plaintext string) bool
	UpdateIdentity(ctx context.Context, userID id.UserID, patch identity.Patch) (*identity.Identity, error)
}

// AttemptTracker is the login-attempt history.
type AttemptTracker interface {
	IsLocked(ctx context.Context, email string) (bool, time.Time, error)
	Record(ctx context.Context, email, sourceAddress string, success bool, reason attempts.FailureReason) (attempts.LockState, error)
}

// SessionCreator opens sessions.
type SessionCreator interface {
	Create(ctx context.Context, ident *identity.Identity, deviceID, sourceAddress, userAgent string) (*models.Session, error)
	Touch(ctx context.Context, sessionID id.SessionID)
}

// TokenIssuer mints and validates tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, ident *identity.Identity, deviceID string, sessionID id.SessionID) (*token.Pair, error)
	IssueAccess(ctx context.Context, ident *identity.Identity, deviceID string, sessionID id.SessionID) (string, time.Time, error)
	ValidateRefresh(ctx context.Context, tokenString string) (*token.Claims, error)
}

type Service struct {
	credentials CredentialStore
	attempts    AttemptTracker
	sessions    SessionCreator
	tokens      TokenIssuer
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(credentials CredentialStore, tracker AttemptTracker, sessions SessionCreator, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if credentials == nil || tracker == nil || sessions == nil || tokens == nil {
		return nil, errors.New("credential store, attempt tracker, sessions and tokens are required")
	}
	s := &Service{
		credentials: credentials,
		attempts:    tracker,
		sessions:    sessions,
		tokens:      tokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
