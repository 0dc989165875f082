package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	identity "adminguard/internal/identity/models"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

type fakeSessions struct {
	active map[id.SessionID]id.UserID
	err    error
}

func (f *fakeSessions) SessionActive(_ context.Context, sessionID id.SessionID, userID id.UserID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	owner, ok := f.active[sessionID]
	return ok && owner == userID, nil
}

type TokenSuite struct {
	suite.Suite
	sessions  *fakeSessions
	service   *Service
	ident     *identity.Identity
	sessionID id.SessionID
	now       time.Time
	ctx       context.Context
}

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

func (s *TokenSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.sessions = &fakeSessions{active: map[id.SessionID]id.UserID{}}

	svc, err := New("test-signing-key-with-enough-bytes", "adminguard-test", permission.MustDefault(), s.sessions)
	s.Require().NoError(err)
	s.service = svc

	s.ident = &identity.Identity{
		ID:                  id.NewUserID(),
		Email:               "ops@example.com",
		Role:                permission.RoleSupport,
		PermissionOverrides: permission.NewSet(permission.AnalyticsView),
		Status:              identity.StatusActive,
	}
	s.sessionID = id.NewSessionID()
	s.sessions.active[s.sessionID] = s.ident.ID
}

func (s *TokenSuite) issue() *Pair {
	pair, err := s.service.Issue(s.ctx, s.ident, "device-1", s.sessionID)
	s.Require().NoError(err)
	return pair
}

func (s *TokenSuite) TestIssueAndValidate() {
	pair := s.issue()

	s.Equal(s.now.Add(time.Hour), pair.AccessExpiresAt)
	s.Equal(s.now.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	claims, err := s.service.Validate(s.ctx, pair.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.ident.ID.String(), claims.Subject)
	s.Equal("ops@example.com", claims.Email)
	s.Equal("support", claims.Role)
	s.Equal([]string{"analytics_view"}, claims.Permissions)
	s.Equal("device-1", claims.DeviceID)
	s.Equal(s.sessionID.String(), claims.SessionID)
	s.Equal(TypeAccess, claims.TokenType)
}

func (s *TokenSuite) TestExpiredToken() {
	pair := s.issue()
	later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour))

	_, err := s.service.Validate(later, pair.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.ErrorIs(err, ErrExpired)

	_, err = s.service.ValidateRefresh(later, pair.RefreshToken)
	s.NoError(err, "refresh token outlives the access token")
}

func (s *TokenSuite) TestInvalidSignature() {
	pair := s.issue()

	other, err := New("a-completely-different-signing-key", "adminguard-test", permission.MustDefault(), s.sessions)
	s.Require().NoError(err)
	_, err = other.Validate(s.ctx, pair.AccessToken)
	s.ErrorIs(err, ErrInvalidSignature)

	_, err = s.service.Validate(s.ctx, "not-a-token")
	s.ErrorIs(err, ErrInvalidSignature)
}

func (s *TokenSuite) TestRejectsUnsignedAlgorithm() {
	claims := Claims{
		SessionID: s.sessionID.String(),
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ident.ID.String(),
			Issuer:    "adminguard-test",
			ExpiresAt: jwt.NewNumericDate(s.now.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.service.Validate(s.ctx, unsigned)
	s.ErrorIs(err, ErrInvalidSignature)
}

func (s *TokenSuite) TestTerminatedSessionIsRejected() {
	pair := s.issue()
	delete(s.sessions.active, s.sessionID)

	_, err := s.service.Validate(s.ctx, pair.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.ErrorIs(err, ErrSessionRevoked)

	_, err = s.service.ValidateRefresh(s.ctx, pair.RefreshToken)
	s.ErrorIs(err, ErrSessionRevoked)
}

func (s *TokenSuite) TestSessionOwnedByAnotherUser() {
	pair := s.issue()
	s.sessions.active[s.sessionID] = id.NewUserID()

	_, err := s.service.Validate(s.ctx, pair.AccessToken)
	s.ErrorIs(err, ErrSessionRevoked)
}

func (s *TokenSuite) TestRefreshTokenCannotAuthorize() {
	pair := s.issue()

	_, err := s.service.Validate(s.ctx, pair.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.ValidateRefresh(s.ctx, pair.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *TokenSuite) TestSessionStoreFailureFailsClosed() {
	pair := s.issue()
	s.sessions.err = errors.New("redis down")

	_, err := s.service.Validate(s.ctx, pair.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *TokenSuite) TestParseSkipsSessionLookup() {
	pair := s.issue()
	delete(s.sessions.active, s.sessionID)

	claims, err := s.service.Parse(s.ctx, pair.AccessToken, TypeAccess)
	s.Require().NoError(err)
	s.Equal(s.ident.ID.String(), claims.Subject)
}
