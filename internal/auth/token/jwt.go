// Package token issues and validates the signed access and refresh credentials.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	identity "adminguard/internal/identity/models"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

// Validation failure reasons. They are wrapped in CodeUnauthorized domain errors.
var (
	ErrExpired          = errors.New("EXPIRED")
	ErrInvalidSignature = errors.New("INVALID_SIGNATURE")
	ErrSessionRevoked   = errors.New("SESSION_REVOKED")
)

// Type separates access tokens from single-purpose refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the token payload.
type Claims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"perms"`
	DeviceID    string   `json:"device_id,omitempty"`
	SessionID   string   `json:"sid"`
	TokenType   Type     `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *Claims) UserID() (id.UserID, error) {
	return id.ParseUserID(c.Subject)
}

// Session parses the embedded session id.
func (c *Claims) Session() (id.SessionID, error) {
	return id.ParseSessionID(c.SessionID)
}

// PermissionSet parses the permission snapshot.
func (c *Claims) PermissionSet() (permission.Set, error) {
	return permission.ParseSet(c.Permissions)
}

// Pair is what a successful login returns.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionChecker reports whether a session is live for the given user.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID id.SessionID, userID id.UserID) (bool, error)
}

// Service signs and validates HS256 tokens.
type Service struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	matrix     *permission.Matrix
	sessions   SessionChecker
}

type Option func(*Service)

// WithTTLs overrides the default 1h access and 7d refresh lifetimes.
func WithTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

func New(signingKey, issuer string, matrix *permission.Matrix, sessions SessionChecker, opts ...Option) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	if matrix == nil || sessions == nil {
		return nil, errors.New("permission matrix and session checker are required")
	}
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		accessTTL:  time.Hour,
		refreshTTL: 7 * 24 * time.Hour,
		matrix:     matrix,
		sessions:   sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RefreshTTL is the refresh token lifetime; sessions are created with the same lifetime.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Issue mints an access/refresh pair for ident bound to sessionID.
func (s *Service) Issue(ctx context.Context, ident *identity.Identity, deviceID string, sessionID id.SessionID) (*Pair, error) {
	now := requestcontext.Now(ctx)
	access, accessExp, err := s.sign(ident, deviceID, sessionID, TypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(ident, deviceID, sessionID, TypeRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess mints only an access token. Refresh flows use it.
func (s *Service) IssueAccess(ctx context.Context, ident *identity.Identity, deviceID string, sessionID id.SessionID) (string, time.Time, error) {
	return s.sign(ident, deviceID, sessionID, TypeAccess, requestcontext.Now(ctx), s.accessTTL)
}

func (s *Service) sign(ident *identity.Identity, deviceID string, sessionID id.SessionID, typ Type, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	perms := s.matrix.PermissionsFor(ident.Role, ident.PermissionOverrides)
	claims := Claims{
		Email:       ident.Email,
		Role:        ident.Role.String(),
		Permissions: perms.Strings(),
		DeviceID:    deviceID,
		SessionID:   sessionID.String(),
		TokenType:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// Parse checks signature, expiry, issuer and token type without consulting the session
// store. It never authorizes on its own.
func (s *Service) Parse(ctx context.Context, tokenString string, want Type) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(ErrExpired, dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.Wrap(ErrInvalidSignature, dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.TokenType != want {
		return nil, dErrors.Wrap(ErrInvalidSignature, dErrors.CodeUnauthorized, "wrong token type")
	}
	return claims, nil
}

// Validate authorizes an access token: it must parse and its session must still be live.
// A store failure fails closed as CodeInternal.
func (s *Service) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, TypeAccess)
}

// ValidateRefresh is Validate for refresh tokens, used only to mint a new access token.
func (s *Service) ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, TypeRefresh)
}

func (s *Service) validate(ctx context.Context, tokenString string, want Type) (*Claims, error) {
	claims, err := s.Parse(ctx, tokenString, want)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, dErrors.Wrap(ErrInvalidSignature, dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := claims.Session()
	if err != nil {
		return nil, dErrors.Wrap(ErrInvalidSignature, dErrors.CodeUnauthorized, "invalid token session")
	}
	active, err := s.sessions.SessionActive(ctx, sessionID, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check session")
	}
	if !active {
		return nil, dErrors.Wrap(ErrSessionRevoked, dErrors.CodeUnauthorized, "session is no longer active")
	}
	return claims, nil
}
