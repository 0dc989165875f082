package login

import (
	"context"
	"errors"

	"adminguard/internal/identity/credentials"
	identity "adminguard/internal/identity/models"
	attempts "adminguard/internal/loginattempt/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/sentinel"
	"adminguard/pkg/requestcontext"
)

// invalidCredentials is the only wording a rejected login ever gets.
const invalidCredentials = "invalid email or password"

// Login authenticates req and opens a session.
//
// Every rejection does the same store work (lock check, identity read, attempt record,
// failure mirror) and answers with the same wording, whether the email is unknown, the
// account is locked or inactive, or the password or MFA code is wrong.
//
// Errors: CodeValidation for a missing email or password; CodeAccountLocked and
// CodeUnauthorized (rendered identically) for rejected credentials; CodeInternal when
// the attempt history or the identity cannot be read or written.
func (s *Service) Login(ctx context.Context, req Request) (*Result, error) {
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	locked, until, err := s.attempts.IsLocked(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "lockout check failed", "error", err)
		return nil, err
	}

	ident, err := s.credentials.GetIdentityByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			credentials.EqualizeTiming(req.Password)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
		}
		ident = nil
	}

	if locked {
		credentials.EqualizeTiming(req.Password)
		s.logger.WarnContext(ctx, "login rejected for locked account", "email", email, "locked_until", until)
		return nil, s.reject(ctx, email, req.SourceAddress, ident, attempts.ReasonAccountLocked)
	}
	if !s.credentials.VerifyPassword(ident, req.Password) {
		return nil, s.reject(ctx, email, req.SourceAddress, ident, attempts.ReasonInvalidCredentials)
	}
	if !ident.IsActive() {
		return nil, s.reject(ctx, email, req.SourceAddress, ident, attempts.ReasonAccountInactive)
	}
	if reason := s.checkMFA(ctx, ident, req); reason != attempts.ReasonNone {
		return nil, s.reject(ctx, email, req.SourceAddress, ident, reason)
	}

	if _, err := s.attempts.Record(ctx, email, req.SourceAddress, true, attempts.ReasonNone); err != nil {
		return nil, err
	}
	s.clearFailures(ctx, ident)

	session, err := s.sessions.Create(ctx, ident, req.DeviceID, req.SourceAddress, req.UserAgent)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.Issue(ctx, ident, req.DeviceID, session.ID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", ident.ID.String(),
		"session_id", session.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Result{Tokens: pair, Session: session, Identity: ident}, nil
}

// checkMFA returns the failure reason for a missing or wrong second factor, or
// ReasonNone when the identity passes.
func (s *Service) checkMFA(ctx context.Context, ident *identity.Identity, req Request) attempts.FailureReason {
	if !ident.MFAEnabled {
		if req.RequireMFA {
			return attempts.ReasonMFARequired
		}
		return attempts.ReasonNone
	}
	if req.MFACode == "" {
		return attempts.ReasonMFARequired
	}
	if !credentials.VerifyTOTP(ident.MFASecret, req.MFACode, requestcontext.Now(ctx)) {
		return attempts.ReasonInvalidMFA
	}
	return attempts.ReasonNone
}

// reject records a failed attempt, mirrors the resulting lock state and returns the
// uniform rejection. A record that cannot be written turns the rejection into
// CodeInternal.
func (s *Service) reject(ctx context.Context, email, source string, ident *identity.Identity, reason attempts.FailureReason) error {
	state, err := s.attempts.Record(ctx, email, source, false, reason)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "login failed", "email", email, "reason", string(reason), "streak", state.Streak)
	s.mirrorFailures(ctx, ident, state)
	if state.Locked {
		return dErrors.New(dErrors.CodeAccountLocked, invalidCredentials)
	}
	return dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
}

// mirrorFailures copies the lock state onto the identity. The attempt history stays
// authoritative, so a failed update is only logged. Unknown emails get the same write
// against an id no identity carries.
func (s *Service) mirrorFailures(ctx context.Context, ident *identity.Identity, state attempts.LockState) {
	var target id.UserID
	if ident != nil {
		target = ident.ID
	}
	count := state.Streak
	patch := identity.Patch{FailedAttemptCount: &count}
	if state.Locked {
		until := state.LockedUntil
		patch.LockedUntil = &until
	}
	_, err := s.credentials.UpdateIdentity(ctx, target, patch)
	if err != nil && (ident != nil || !errors.Is(err, sentinel.ErrNotFound)) {
		s.logger.WarnContext(ctx, "failed to cache login failures", "error", err, "user_id", target.String())
	}
}

// Refresh mints a new access token from a refresh token whose session is still live.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "refresh_token is required")
	}
	claims, err := s.tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := claims.Session()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token session")
	}

	ident, err := s.credentials.GetIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	if !ident.IsActive() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is not active")
	}

	access, expiresAt, err := s.tokens.IssueAccess(ctx, ident, claims.DeviceID, sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.Touch(ctx, sessionID)
	return &RefreshResult{AccessToken: access, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}
