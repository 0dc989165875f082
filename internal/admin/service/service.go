// Package service implements the admin operations on other users' sessions and account
// status. Callers arrive already authenticated; per-route permissions are enforced by
// the pipeline, ownership rules here.
package service

import (
	"context"
	"errors"
	"log/slog"

	authmodels "adminguard/internal/auth/models"
	identity "adminguard/internal/identity/models"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

// UserStore reads and updates identities. Errors are already domain errors.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*identity.Identity, error)
	SetStatus(ctx context.Context, userID id.UserID, status identity.Status) (*identity.Identity, error)
}

// SessionManager is the session service.
type SessionManager interface {
	Lookup(ctx context.Context, sessionID id.SessionID) (*authmodels.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*authmodels.Session, error)
	Terminate(ctx context.Context, sessionID id.SessionID) error
	TerminateAll(ctx context.Context, userID id.UserID) (int, error)
}

// Actor is the authenticated admin making the call.
type Actor struct {
	UserID      id.UserID
	SessionID   id.SessionID
	Permissions permission.Set
}

func (a Actor) canManageUsers() bool {
	return a.Permissions.Has(permission.UserManagement)
}

// StatusChange is the result of ChangeStatus.
type StatusChange struct {
	UserID             id.UserID       `json:"user_id"`
	Previous           identity.Status `json:"previous_status"`
	Current            identity.Status `json:"status"`
	SessionsTerminated int             `json:"sessions_terminated"`
}

type Service struct {
	users    UserStore
	sessions SessionManager
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(users UserStore, sessions SessionManager, opts ...Option) (*Service, error) {
	if users == nil || sessions == nil {
		return nil, errors.New("user store and session manager are required")
	}
	s := &Service{users: users, sessions: sessions, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListSessions lists target's sessions, or the actor's own when target is nil. Listing
// someone else's sessions requires user_management.
func (s *Service) ListSessions(ctx context.Context, actor Actor, target id.UserID) (*authmodels.SessionsResult, error) {
	if target.IsNil() {
		target = actor.UserID
	}
	if target != actor.UserID && !actor.canManageUsers() {
		return nil, dErrors.New(dErrors.CodeForbidden, "missing required permission")
	}
	sessions, err := s.sessions.ListByUser(ctx, target)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	out := &authmodels.SessionsResult{Sessions: make([]authmodels.SessionSummary, 0, len(sessions))}
	for _, session := range sessions {
		out.Sessions = append(out.Sessions, authmodels.Summarize(session, now, session.ID == actor.SessionID))
	}
	return out, nil
}

// TerminateSession ends one session. Actors may always end their own; ending another
// user's needs user_management. Returns the session as it was before termination.
func (s *Service) TerminateSession(ctx context.Context, actor Actor, sessionID id.SessionID) (*authmodels.Session, error) {
	session, err := s.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != actor.UserID && !actor.canManageUsers() {
		s.logger.WarnContext(ctx, "session termination denied",
			"actor_id", actor.UserID.String(),
			"session_id", sessionID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot terminate another user's session")
	}
	if err := s.sessions.Terminate(ctx, sessionID); err != nil {
		return nil, err
	}
	return session, nil
}

// TerminateUserSessions ends every live session of userID.
func (s *Service) TerminateUserSessions(ctx context.Context, userID id.UserID) (int, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return 0, err
	}
	n, err := s.sessions.TerminateAll(ctx, userID)
	if err != nil {
		return n, err
	}
	s.logger.InfoContext(ctx, "user sessions terminated",
		"user_id", userID.String(),
		"terminated", n,
		"request_id", requestcontext.RequestID(ctx),
	)
	return n, nil
}

// ChangeStatus moves userID to status. Any status other than active also ends every
// session, so tokens minted before the change stop authorizing at once. Repeating a
// change is harmless and retries the termination.
func (s *Service) ChangeStatus(ctx context.Context, userID id.UserID, status identity.Status) (*StatusChange, error) {
	ident, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ident.CanTransitionTo(status); err != nil {
		return nil, err
	}
	change := &StatusChange{UserID: userID, Previous: ident.Status, Current: status}
	if ident.Status != status {
		if _, err := s.users.SetStatus(ctx, userID, status); err != nil {
			return nil, err
		}
	}
	if status != identity.StatusActive {
		n, err := s.sessions.TerminateAll(ctx, userID)
		change.SessionsTerminated = n
		if err != nil {
			return nil, err
		}
	}
	s.logger.InfoContext(ctx, "user status changed",
		"user_id", userID.String(),
		"previous", string(change.Previous),
		"status", string(status),
		"sessions_terminated", change.SessionsTerminated,
		"request_id", requestcontext.RequestID(ctx),
	)
	return change, nil
}
