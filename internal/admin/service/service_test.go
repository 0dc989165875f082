package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"adminguard/internal/admin/adapters"
	"adminguard/internal/admin/service"
	sessionservice "adminguard/internal/auth/service"
	sessionstore "adminguard/internal/auth/store/session"
	identity "adminguard/internal/identity/models"
	identitystore "adminguard/internal/identity/store"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	users    *identitystore.InMemoryStore
	sessions *sessionservice.Service
	service  *service.Service
	admin    *identity.Identity
	member   *identity.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = testutil.Context(now)
	s.users = identitystore.NewInMemoryStore()
	s.admin = s.create("admin@example.com", permission.RoleAdmin, now)
	s.member = s.create("member@example.com", permission.RoleSupport, now)

	sessions, err := sessionservice.New(sessionstore.New())
	s.Require().NoError(err)
	s.sessions = sessions
	svc, err := service.New(adapters.NewUserStoreAdapter(s.users), sessions)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) create(email string, role permission.Role, now time.Time) *identity.Identity {
	ident, err := identity.NewIdentity(email, "", role, "hash", now)
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(context.Background(), ident))
	return ident
}

func (s *ServiceSuite) actor(ident *identity.Identity, sessionID id.SessionID) service.Actor {
	return service.Actor{
		UserID:      ident.ID,
		SessionID:   sessionID,
		Permissions: permission.MustDefault().PermissionsFor(ident.GrantedRole(), ident.GrantedOverrides()),
	}
}

func (s *ServiceSuite) openSession(ident *identity.Identity) id.SessionID {
	session, err := s.sessions.Create(s.ctx, ident, "device", "192.0.2.1", "Mozilla/5.0")
	s.Require().NoError(err)
	return session.ID
}

func (s *ServiceSuite) TestListOwnSessionsMarksCurrent() {
	current := s.openSession(s.member)
	s.openSession(s.member)

	res, err := s.service.ListSessions(s.ctx, s.actor(s.member, current), id.UserID{})
	s.Require().NoError(err)
	s.Require().Len(res.Sessions, 2)
	currents := 0
	for _, summary := range res.Sessions {
		if summary.IsCurrent {
			currents++
			s.Equal(current.String(), summary.SessionID)
		}
	}
	s.Equal(1, currents)
}

func (s *ServiceSuite) TestListingOthersNeedsUserManagement() {
	_, err := s.service.ListSessions(s.ctx, s.actor(s.member, id.NewSessionID()), s.admin.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	res, err := s.service.ListSessions(s.ctx, s.actor(s.admin, id.NewSessionID()), s.member.ID)
	s.Require().NoError(err)
	s.Empty(res.Sessions)
}

func (s *ServiceSuite) TestTerminateSessionOwnership() {
	adminSession := s.openSession(s.admin)
	memberSession := s.openSession(s.member)

	_, err := s.service.TerminateSession(s.ctx, s.actor(s.member, memberSession), adminSession)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	terminated, err := s.service.TerminateSession(s.ctx, s.actor(s.member, memberSession), memberSession)
	s.Require().NoError(err)
	s.Equal(s.member.ID, terminated.UserID)

	_, err = s.service.TerminateSession(s.ctx, s.actor(s.admin, adminSession), id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTerminateUserSessionsRequiresKnownUser() {
	_, err := s.service.TerminateUserSessions(s.ctx, id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.openSession(s.member)
	s.openSession(s.member)
	n, err := s.service.TerminateUserSessions(s.ctx, s.member.ID)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *ServiceSuite) TestSuspendTerminatesEverySession() {
	session := s.openSession(s.member)

	change, err := s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusSuspended)
	s.Require().NoError(err)
	s.Equal(identity.StatusActive, change.Previous)
	s.Equal(identity.StatusSuspended, change.Current)
	s.Equal(1, change.SessionsTerminated)

	active, err := s.sessions.SessionActive(s.ctx, session, s.member.ID)
	s.Require().NoError(err)
	s.False(active)

	stored, err := s.users.GetIdentityByID(s.ctx, s.member.ID)
	s.Require().NoError(err)
	s.Equal(identity.StatusSuspended, stored.Status)

	again, err := s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusSuspended)
	s.Require().NoError(err, "repeating a change is allowed")
	s.Zero(again.SessionsTerminated)
}

func (s *ServiceSuite) TestReactivationKeepsSessions() {
	_, err := s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusSuspended)
	s.Require().NoError(err)
	session := s.openSession(s.member)

	change, err := s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusActive)
	s.Require().NoError(err)
	s.Zero(change.SessionsTerminated)
	active, err := s.sessions.SessionActive(s.ctx, session, s.member.ID)
	s.Require().NoError(err)
	s.True(active)
}

func (s *ServiceSuite) TestBannedIsTerminal() {
	_, err := s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusBanned)
	s.Require().NoError(err)

	_, err = s.service.ChangeStatus(s.ctx, s.member.ID, identity.StatusActive)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = s.service.ChangeStatus(s.ctx, id.NewUserID(), identity.StatusActive)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
