package service

import (
	"context"
	"errors"
	"sort"

	"adminguard/internal/auth/device"
	"adminguard/internal/auth/models"
	identity "adminguard/internal/identity/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/sentinel"
	"adminguard/pkg/requestcontext"
)

// Create opens an active session for ident and then enforces the per-user cap by
// terminating the oldest live sessions beyond it. Concurrent creators agree on which
// sessions are oldest, so racing enforcements converge on the same survivors.
func (s *Service) Create(ctx context.Context, ident *identity.Identity, deviceID, sourceAddress, userAgent string) (*models.Session, error) {
	if ident == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity required")
	}
	if !ident.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is not active")
	}

	now := requestcontext.Now(ctx)
	session, err := models.NewSession(ident.ID, deviceID, device.Label(deviceID, userAgent), sourceAddress, now, s.ttl)
	if err != nil {
		return nil, err
	}
	// Persisted records are already active; CREATED only exists before the first write.
	if err := session.Activate(now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate session")
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	s.metrics.IncCreated()

	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID.String(),
		"user_id", ident.ID.String(),
		"device", session.DeviceName,
	)

	if _, err := s.enforceCap(ctx, ident.ID, session); err != nil {
		// The sweeper converges the user back under the cap.
		s.logger.WarnContext(ctx, "failed to enforce session cap",
			"error", err,
			"user_id", ident.ID.String(),
		)
	}
	return session, nil
}

// Get returns a session that is still usable. Expired sessions are reported as not found.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State(requestcontext.Now(ctx)) == models.StateExpired {
		return nil, dErrors.New(dErrors.CodeNotFound, "session expired")
	}
	return session, nil
}

// Lookup returns the session in any state; admin listings and termination use it.
func (s *Service) Lookup(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.find(ctx, sessionID)
}

func (s *Service) find(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "session ID required")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return session, nil
}

// Touch records activity on the session. Failures are logged and otherwise ignored.
func (s *Service) Touch(ctx context.Context, sessionID id.SessionID) {
	if err := s.sessions.Touch(ctx, sessionID, requestcontext.Now(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to touch session",
			"error", err,
			"session_id", sessionID.String(),
		)
	}
}

// SessionActive reports whether sessionID belongs to userID and authorizes requests now.
func (s *Service) SessionActive(ctx context.Context, sessionID id.SessionID, userID id.UserID) (bool, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if session.UserID != userID {
		return false, nil
	}
	return session.IsActiveAt(requestcontext.Now(ctx)), nil
}

// Terminate ends the session. Terminating an already ended session succeeds.
func (s *Service) Terminate(ctx context.Context, sessionID id.SessionID) error {
	return s.terminate(ctx, sessionID, reasonManual)
}

func (s *Service) terminate(ctx context.Context, sessionID id.SessionID, reason string) error {
	if sessionID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "session ID required")
	}
	err := s.sessions.Terminate(ctx, sessionID, requestcontext.Now(ctx))
	switch {
	case err == nil:
		s.metrics.IncTerminated(reason)
		s.logger.InfoContext(ctx, "session terminated",
			"session_id", sessionID.String(),
			"reason", reason,
		)
		return nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to terminate session")
	}
}

// ListByUser returns every stored session for the user, oldest first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

// TerminateAll ends every live session of the user and reports how many it ended.
// It keeps going past individual failures and returns the first one.
func (s *Service) TerminateAll(ctx context.Context, userID id.UserID) (int, error) {
	sessions, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)
	terminated := 0
	var firstErr error
	for _, session := range sessions {
		state := session.State(now)
		if state != models.StateActive && state != models.StateCreated {
			continue
		}
		if err := s.terminate(ctx, session.ID, reasonTerminateAll); err != nil {
			s.logger.ErrorContext(ctx, "failed to terminate session",
				"error", err,
				"session_id", session.ID.String(),
				"user_id", userID.String(),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		terminated++
	}
	return terminated, firstErr
}

// enforceCap terminates the oldest live sessions beyond the cap, ordered by issuance time
// and then session id so every caller picks the same victims. When created is set, only
// sessions issued strictly before it are eligible: a login never revokes its own session
// or one a racing login issued at the same instant. The sweeper settles those ties.
func (s *Service) enforceCap(ctx context.Context, userID id.UserID, created *models.Session) (int, error) {
	if s.maxPerUser == 0 {
		return 0, nil
	}
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)
	live := make([]*models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.IsActiveAt(now) {
			live = append(live, session)
		}
	}
	excess := len(live) - s.maxPerUser
	if excess <= 0 {
		return 0, nil
	}

	sort.Slice(live, func(i, j int) bool {
		if live[i].IssuedAt.Equal(live[j].IssuedAt) {
			return live[i].ID.String() < live[j].ID.String()
		}
		return live[i].IssuedAt.Before(live[j].IssuedAt)
	})
	evicted := 0
	for _, session := range live[:excess] {
		if created != nil && !session.IssuedAt.Before(created.IssuedAt) {
			break
		}
		if err := s.terminate(ctx, session.ID, reasonCapExceeded); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}
