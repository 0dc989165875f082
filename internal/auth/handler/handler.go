// Package handler exposes login, admin login, refresh and logout over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	audit "adminguard/internal/audit/models"
	"adminguard/internal/auth/login"
	"adminguard/internal/pipeline"
	ratelimit "adminguard/internal/ratelimit/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/httputil"
	"adminguard/pkg/requestcontext"
)

// Service is the pre-authentication login flow.
type Service interface {
	Login(ctx context.Context, req login.Request) (*login.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*login.RefreshResult, error)
}

// SessionTerminator ends the caller's session on logout.
type SessionTerminator interface {
	Terminate(ctx context.Context, sessionID id.SessionID) error
}

type Handler struct {
	login    Service
	sessions SessionTerminator
	guard    *pipeline.Guard
	logger   *slog.Logger
}

func New(svc Service, sessions SessionTerminator, guard *pipeline.Guard, logger *slog.Logger) *Handler {
	return &Handler{login: svc, sessions: sessions, guard: guard, logger: logger}
}

// Register mounts the /auth routes on r.
func (h *Handler) Register(r chi.Router) {
	public := h.guard.Public(ratelimit.ClassGeneral)

	r.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", pipeline.HTTP(h.handleLogin, public...))
		r.Method(http.MethodPost, "/admin/login", pipeline.HTTP(h.handleAdminLogin,
			append(h.guard.Public(ratelimit.ClassGeneral),
				h.guard.Audit(audit.ActionAdminLogin, audit.ResourceUser, pipeline.PrincipalID))...))
		r.Method(http.MethodPost, "/refresh", pipeline.HTTP(h.handleRefresh, public...))
		r.Method(http.MethodPost, "/logout", pipeline.HTTP(h.handleLogout,
			append(h.guard.Authenticated(ratelimit.ClassGeneral),
				h.guard.Audit(audit.ActionLogout, audit.ResourceSession, sessionOf))...))
	})
}

func sessionOf(req *pipeline.Request) string {
	if req.Principal == nil {
		return ""
	}
	return req.Principal.SessionID.String()
}

func (h *Handler) handleLogin(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	var body LoginRequest
	if err := httputil.DecodeJSON(req.HTTP, &body); err != nil {
		return nil, err
	}
	res, err := h.login.Login(ctx, body.toLogin(ctx, false))
	if err != nil {
		return nil, err
	}
	return pipeline.OK(toLoginResponse(res)), nil
}

// handleAdminLogin is handleLogin with MFA mandatory. On success the principal is set
// so the audit record names the admin who signed in.
func (h *Handler) handleAdminLogin(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	var body LoginRequest
	if err := httputil.DecodeJSON(req.HTTP, &body); err != nil {
		return nil, err
	}
	details := map[string]any{"email": body.Email}
	res, err := h.login.Login(ctx, body.toLogin(ctx, true))
	if err != nil {
		return &pipeline.Response{AuditDetails: details}, err
	}
	req.Principal = &pipeline.Principal{
		UserID:    res.Identity.ID,
		SessionID: res.Session.ID,
		Email:     res.Identity.Email,
		Role:      res.Identity.Role,
		DeviceID:  res.Session.DeviceID,
	}
	resp := pipeline.OK(toLoginResponse(res))
	resp.AuditDetails = details
	return resp, nil
}

func (h *Handler) handleRefresh(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	var body RefreshRequest
	if err := httputil.DecodeJSON(req.HTTP, &body); err != nil {
		return nil, err
	}
	res, err := h.login.Refresh(ctx, body.RefreshToken)
	if err != nil {
		return nil, err
	}
	return pipeline.OK(res), nil
}

func (h *Handler) handleLogout(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if req.Principal == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := h.sessions.Terminate(ctx, req.Principal.SessionID); err != nil {
		h.logger.ErrorContext(ctx, "failed to terminate session on logout",
			"error", err,
			"session_id", req.Principal.SessionID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	return nil, nil
}

// LoginRequest is the body of both login routes.
type LoginRequest struct {
	Email    string `json:"email"     validate:"required,email,max=254"`
	Password string `json:"password"  validate:"required,max=1024"`
	MFACode  string `json:"mfa_code"  validate:"omitempty,numeric,len=6"`
	DeviceID string `json:"device_id" validate:"omitempty,max=128"`
}

// toLogin falls back to the device id from the request headers when the body has none.
func (r LoginRequest) toLogin(ctx context.Context, requireMFA bool) login.Request {
	deviceID := r.DeviceID
	if deviceID == "" {
		deviceID = requestcontext.DeviceID(ctx)
	}
	return login.Request{
		Email:         r.Email,
		Password:      r.Password,
		MFACode:       r.MFACode,
		DeviceID:      deviceID,
		SourceAddress: requestcontext.ClientIP(ctx),
		UserAgent:     requestcontext.UserAgent(ctx),
		RequireMFA:    requireMFA,
	}
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LoginResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	Role             string    `json:"role"`
}

func toLoginResponse(res *login.Result) LoginResponse {
	return LoginResponse{
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		TokenType:        res.Tokens.TokenType,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		SessionID:        res.Session.ID.String(),
		UserID:           res.Identity.ID.String(),
		Role:             res.Identity.Role.String(),
	}
}
