package login_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"adminguard/internal/auth/login"
	"adminguard/internal/auth/login/mocks"
	sessionservice "adminguard/internal/auth/service"
	sessionstore "adminguard/internal/auth/store/session"
	"adminguard/internal/auth/token"
	"adminguard/internal/identity/credentials"
	identity "adminguard/internal/identity/models"
	identitystore "adminguard/internal/identity/store"
	attempts "adminguard/internal/loginattempt/models"
	attemptservice "adminguard/internal/loginattempt/service"
	attemptstore "adminguard/internal/loginattempt/store"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

const password = "correct horse battery staple"

type LoginSuite struct {
	suite.Suite
	hash       string
	identities *identitystore.InMemoryStore
	tracker    *attemptservice.Service
	sessions   *sessionservice.Service
	tokens     *token.Service
	service    *login.Service
	now        time.Time
	admin      *identity.Identity
}

func TestLoginSuite(t *testing.T) {
	suite.Run(t, new(LoginSuite))
}

func (s *LoginSuite) SetupSuite() {
	hash, err := credentials.HashPassword(password)
	s.Require().NoError(err)
	s.hash = hash
}

func (s *LoginSuite) SetupTest() {
	s.now = time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	s.identities = identitystore.NewInMemoryStore()

	tracker, err := attemptservice.New(attemptstore.NewInMemoryStore())
	s.Require().NoError(err)
	s.tracker = tracker

	sessions, err := sessionservice.New(sessionstore.New())
	s.Require().NoError(err)
	s.sessions = sessions

	tokens, err := token.New("login-suite-signing-key", "adminguard", permission.MustDefault(), sessions)
	s.Require().NoError(err)
	s.tokens = tokens

	svc, err := login.New(s.identities, tracker, sessions, tokens)
	s.Require().NoError(err)
	s.service = svc

	s.admin = s.createIdentity("admin@example.com", permission.RoleAdmin)
}

func (s *LoginSuite) createIdentity(email string, role permission.Role) *identity.Identity {
	ident, err := identity.NewIdentity(email, "", role, s.hash, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.Create(context.Background(), ident))
	return ident
}

func (s *LoginSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *LoginSuite) req(email, pw string) login.Request {
	return login.Request{Email: email, Password: pw, SourceAddress: "192.0.2.10", UserAgent: "Mozilla/5.0", DeviceID: "laptop"}
}

func (s *LoginSuite) TestSuccessfulLoginIssuesTokensAndSession() {
	res, err := s.service.Login(s.at(0), s.req("Admin@Example.com ", password))
	s.Require().NoError(err)
	s.NotEmpty(res.Tokens.AccessToken)
	s.NotEmpty(res.Tokens.RefreshToken)
	s.Equal(s.admin.ID, res.Session.UserID)

	claims, err := s.tokens.Validate(s.at(time.Minute), res.Tokens.AccessToken)
	s.Require().NoError(err)
	s.Equal(res.Session.ID.String(), claims.SessionID)
}

func (s *LoginSuite) TestUnknownEmailAndWrongPasswordLookAlike() {
	_, unknown := s.service.Login(s.at(0), s.req("ghost@example.com", password))
	_, wrong := s.service.Login(s.at(0), s.req("admin@example.com", "nope"))

	s.True(dErrors.HasCode(unknown, dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(wrong, dErrors.CodeUnauthorized))
	s.Equal(unknown.Error(), wrong.Error())
}

func (s *LoginSuite) TestFiveFailuresLockTheAccount() {
	for i := range 5 {
		_, err := s.service.Login(s.at(time.Duration(i)*time.Minute), s.req("admin@example.com", "wrong"))
		s.Require().Error(err)
	}

	_, err := s.service.Login(s.at(6*time.Minute), s.req("admin@example.com", password))
	s.True(dErrors.HasCode(err, dErrors.CodeAccountLocked), "correct password is not even checked")

	_, wrong := s.service.Login(s.at(7*time.Minute), s.req("admin@example.com", "wrong"))
	s.True(dErrors.HasCode(wrong, dErrors.CodeAccountLocked))

	cached, getErr := s.identities.GetIdentityByID(context.Background(), s.admin.ID)
	s.Require().NoError(getErr)
	s.Equal(5, cached.FailedAttemptCount)
	s.Require().NotNil(cached.LockedUntil)
	s.Equal(s.now.Add(4*time.Minute+30*time.Minute), *cached.LockedUntil)

	res, err := s.service.Login(s.at(35*time.Minute), s.req("admin@example.com", password))
	s.Require().NoError(err, "lock expires after the cooldown")
	s.NotNil(res.Session)

	cleared, getErr := s.identities.GetIdentityByID(context.Background(), s.admin.ID)
	s.Require().NoError(getErr)
	s.Zero(cleared.FailedAttemptCount)
	s.Nil(cleared.LockedUntil)
}

func (s *LoginSuite) TestSuccessResetsStreak() {
	for i := range 4 {
		_, _ = s.service.Login(s.at(time.Duration(i)*time.Second), s.req("admin@example.com", "wrong"))
	}
	_, err := s.service.Login(s.at(10*time.Second), s.req("admin@example.com", password))
	s.Require().NoError(err)

	_, err = s.service.Login(s.at(20*time.Second), s.req("admin@example.com", "wrong"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	locked, _, err := s.tracker.IsLocked(s.at(21*time.Second), "admin@example.com")
	s.Require().NoError(err)
	s.False(locked)
}

func (s *LoginSuite) TestInactiveAccountLooksLikeWrongPassword() {
	suspended := identity.StatusSuspended
	_, err := s.identities.UpdateIdentity(s.at(0), s.admin.ID, identity.Patch{Status: &suspended})
	s.Require().NoError(err)

	_, inactive := s.service.Login(s.at(0), s.req("admin@example.com", password))
	_, wrong := s.service.Login(s.at(0), s.req("admin@example.com", "nope"))
	s.True(dErrors.HasCode(inactive, dErrors.CodeUnauthorized))
	s.Equal(wrong.Error(), inactive.Error(), "a right password on an inactive account is not confirmed")
}

func (s *LoginSuite) TestAdminLoginRequiresMFA() {
	r := s.req("admin@example.com", password)
	r.RequireMFA = true
	_, missing := s.service.Login(s.at(0), r)
	_, wrong := s.service.Login(s.at(0), s.req("admin@example.com", "nope"))
	s.True(dErrors.HasCode(missing, dErrors.CodeUnauthorized))
	s.Equal(wrong.Error(), missing.Error())

	history, err := s.tracker.RecentFailureCount(s.at(time.Second), "admin@example.com", time.Minute)
	s.Require().NoError(err)
	s.Equal(2, history)
}

func (s *LoginSuite) TestTOTP() {
	secret, err := credentials.NewTOTPSecret("adminguard", "root@example.com")
	s.Require().NoError(err)
	root, err := identity.NewIdentity("root@example.com", "Root", permission.RoleSuperAdmin, s.hash, s.now)
	s.Require().NoError(err)
	root.MFAEnabled = true
	root.MFASecret = secret
	s.Require().NoError(s.identities.Create(context.Background(), root))

	_, wrongPassword := s.service.Login(s.at(0), s.req("root@example.com", "nope"))

	r := s.req("root@example.com", password)
	r.RequireMFA = true
	_, err = s.service.Login(s.at(0), r)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "missing code")
	s.Equal(wrongPassword.Error(), err.Error())

	r.MFACode = "000000"
	_, err = s.service.Login(s.at(0), r)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "wrong code")
	s.Equal(wrongPassword.Error(), err.Error())

	code, err := credentials.GenerateTOTP(secret, s.now)
	s.Require().NoError(err)
	r.MFACode = code
	res, err := s.service.Login(s.at(0), r)
	s.Require().NoError(err)
	s.Equal(root.ID, res.Identity.ID)
}

func (s *LoginSuite) TestRefresh() {
	res, err := s.service.Login(s.at(0), s.req("admin@example.com", password))
	s.Require().NoError(err)

	refreshed, err := s.service.Refresh(s.at(2*time.Hour), res.Tokens.RefreshToken)
	s.Require().NoError(err)
	s.Equal(s.now.Add(3*time.Hour), refreshed.ExpiresAt)

	_, err = s.service.Refresh(s.at(2*time.Hour), res.Tokens.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "access tokens cannot refresh")

	s.Require().NoError(s.sessions.Terminate(s.at(3*time.Hour), res.Session.ID))
	_, err = s.service.Refresh(s.at(3*time.Hour), res.Tokens.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "terminated sessions cannot refresh")
}

type FailClosedSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	credentials *mocks.MockCredentialStore
	tracker     *mocks.MockAttemptTracker
	service     *login.Service
}

func TestFailClosedSuite(t *testing.T) {
	suite.Run(t, new(FailClosedSuite))
}

func (s *FailClosedSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.credentials = mocks.NewMockCredentialStore(s.ctrl)
	s.tracker = mocks.NewMockAttemptTracker(s.ctrl)

	sessions, err := sessionservice.New(sessionstore.New())
	s.Require().NoError(err)
	tokens, err := token.New("fail-closed-signing-key", "adminguard", permission.MustDefault(), sessions)
	s.Require().NoError(err)
	svc, err := login.New(s.credentials, s.tracker, sessions, tokens)
	s.Require().NoError(err)
	s.service = svc
}

func (s *FailClosedSuite) TestLockoutReadFailureStopsBeforePasswordCheck() {
	s.tracker.EXPECT().IsLocked(gomock.Any(), "ops@example.com").
		Return(false, time.Time{}, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to check lockout"))

	_, err := s.service.Login(context.Background(), login.Request{Email: "ops@example.com", Password: "pw"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *FailClosedSuite) TestRecordFailureFailsLogin() {
	ident := &identity.Identity{ID: id.UserID(uuid.New()), Email: "ops@example.com", Role: permission.RoleSupport, Status: identity.StatusActive}
	gomock.InOrder(
		s.tracker.EXPECT().IsLocked(gomock.Any(), "ops@example.com").Return(false, time.Time{}, nil),
		s.credentials.EXPECT().GetIdentityByEmail(gomock.Any(), "ops@example.com").Return(ident, nil),
		s.credentials.EXPECT().VerifyPassword(ident, "pw").Return(true),
		s.tracker.EXPECT().Record(gomock.Any(), "ops@example.com", "", true, attempts.ReasonNone).
			Return(attempts.LockState{}, dErrors.New(dErrors.CodeInternal, "failed to record login attempt")),
	)

	res, err := s.service.Login(context.Background(), login.Request{Email: "ops@example.com", Password: "pw"})
	s.Nil(res, "no session without a durable attempt record")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *FailClosedSuite) TestCredentialStoreFailureIsInternal() {
	s.tracker.EXPECT().IsLocked(gomock.Any(), gomock.Any()).Return(false, time.Time{}, nil)
	s.credentials.EXPECT().GetIdentityByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := s.service.Login(context.Background(), login.Request{Email: "ops@example.com", Password: "pw"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
