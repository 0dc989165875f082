// Package handler exposes the admin session, user status, audit log and security source
// routes. Every route runs the admin pipeline.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"adminguard/internal/admin"
	adminservice "adminguard/internal/admin/service"
	audit "adminguard/internal/audit/models"
	authmodels "adminguard/internal/auth/models"
	identity "adminguard/internal/identity/models"
	attempts "adminguard/internal/loginattempt/models"
	"adminguard/internal/permission"
	"adminguard/internal/pipeline"
	ratelimit "adminguard/internal/ratelimit/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/httputil"
	"adminguard/pkg/requestcontext"
)

const (
	defaultSourceWindow = time.Hour
	maxSourceWindow     = 7 * 24 * time.Hour
)

// Service is the admin session and user status service.
type Service interface {
	ListSessions(ctx context.Context, actor adminservice.Actor, target id.UserID) (*authmodels.SessionsResult, error)
	TerminateSession(ctx context.Context, actor adminservice.Actor, sessionID id.SessionID) (*authmodels.Session, error)
	TerminateUserSessions(ctx context.Context, userID id.UserID) (int, error)
	ChangeStatus(ctx context.Context, userID id.UserID, status identity.Status) (*adminservice.StatusChange, error)
}

// AuditLog queries and exports the audit trail.
type AuditLog interface {
	Query(ctx context.Context, filter audit.Filter, page audit.Page) (*audit.PageResult, error)
	Export(ctx context.Context, from, to time.Time, format audit.Format) ([]byte, error)
}

// SourceReporter aggregates failed logins by source address.
type SourceReporter interface {
	SuspiciousSources(ctx context.Context, window time.Duration, minAccounts int) ([]attempts.SourceSummary, error)
}

type Handler struct {
	admin   Service
	audit   AuditLog
	sources SourceReporter
	guard   *pipeline.Guard
	logger  *slog.Logger
}

func New(svc Service, auditLog AuditLog, sources SourceReporter, guard *pipeline.Guard, logger *slog.Logger) *Handler {
	return &Handler{admin: svc, audit: auditLog, sources: sources, guard: guard, logger: logger}
}

// Register mounts the /admin routes on r.
func (h *Handler) Register(r chi.Router) {
	g := h.guard
	userMgmt := ratelimit.ClassFor(permission.UserManagement)
	auditView := ratelimit.ClassFor(permission.AuditLogView)

	r.Route("/admin", func(r chi.Router) {
		r.Method(http.MethodGet, "/sessions", pipeline.HTTP(h.handleListSessions,
			g.Admin(ratelimit.ClassGeneral, audit.ActionSessionsListed, audit.ResourceUser, listTarget)...))
		r.Method(http.MethodPost, "/sessions/{id}/terminate", pipeline.HTTP(h.handleTerminateSession,
			g.Admin(ratelimit.ClassGeneral, audit.ActionSessionTerminated, audit.ResourceSession, pipeline.FromParam("id"))...))

		r.Method(http.MethodPost, "/users/{id}/sessions/terminate", pipeline.HTTP(h.handleTerminateUserSessions,
			g.Admin(userMgmt, audit.ActionUserSessionsRevoked, audit.ResourceUser, pipeline.FromParam("id"), permission.UserManagement)...))
		r.Method(http.MethodPost, "/users/{id}/status", pipeline.HTTP(h.handleChangeStatus,
			g.Admin(userMgmt, audit.ActionUserStatusChanged, audit.ResourceUser, pipeline.FromParam("id"), permission.UserManagement)...))

		r.Method(http.MethodGet, "/audit-logs", pipeline.HTTP(h.handleQueryAuditLogs,
			g.Admin(auditView, audit.ActionAuditLogsQueried, audit.ResourceAuditLog, nil, permission.AuditLogView)...))
		r.Method(http.MethodPost, "/audit-logs/export", pipeline.HTTP(h.handleExportAuditLogs,
			g.Admin(ratelimit.ClassBulkExport, audit.ActionAuditLogsExported, audit.ResourceAuditLog, nil, permission.AuditLogView)...))

		r.Method(http.MethodGet, "/security/sources", pipeline.HTTP(h.handleSecuritySources,
			g.Admin(auditView, audit.ActionSecuritySourcesViewed, audit.ResourceSecuritySource, nil, permission.AuditLogView)...))
	})
}

func actorOf(req *pipeline.Request) (adminservice.Actor, error) {
	p := req.Principal
	if p == nil {
		return adminservice.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return adminservice.Actor{UserID: p.UserID, SessionID: p.SessionID, Permissions: p.Permissions}, nil
}

func listTarget(req *pipeline.Request) string {
	if target := req.Query("user_id"); target != "" {
		return target
	}
	return pipeline.PrincipalID(req)
}

func (h *Handler) handleListSessions(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	actor, err := actorOf(req)
	if err != nil {
		return nil, err
	}
	var target id.UserID
	if raw := req.Query("user_id"); raw != "" {
		if target, err = id.ParseUserID(raw); err != nil {
			return nil, err
		}
	}
	res, err := h.admin.ListSessions(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	resp := pipeline.OK(res)
	resp.AuditDetails = map[string]any{"count": len(res.Sessions)}
	return resp, nil
}

func (h *Handler) handleTerminateSession(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	actor, err := actorOf(req)
	if err != nil {
		return nil, err
	}
	sessionID, err := id.ParseSessionID(req.Param("id"))
	if err != nil {
		return nil, err
	}
	session, err := h.admin.TerminateSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	resp := pipeline.OK(admin.TerminateResponse{
		SessionID: session.ID.String(),
		UserID:    session.UserID.String(),
		Status:    string(authmodels.StatusTerminated),
	})
	resp.AuditDetails = map[string]any{
		"owner_id": session.UserID.String(),
		"own":      session.UserID == actor.UserID,
	}
	return resp, nil
}

func (h *Handler) handleTerminateUserSessions(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	userID, err := id.ParseUserID(req.Param("id"))
	if err != nil {
		return nil, err
	}
	n, err := h.admin.TerminateUserSessions(ctx, userID)
	if err != nil {
		return &pipeline.Response{AuditDetails: map[string]any{"terminated": n}}, err
	}
	resp := pipeline.OK(admin.TerminateAllResponse{UserID: userID.String(), Terminated: n})
	resp.AuditDetails = map[string]any{"terminated": n}
	return resp, nil
}

func (h *Handler) handleChangeStatus(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	userID, err := id.ParseUserID(req.Param("id"))
	if err != nil {
		return nil, err
	}
	var body admin.StatusRequest
	if err := httputil.DecodeJSON(req.HTTP, &body); err != nil {
		return nil, err
	}
	status, err := identity.ParseStatus(body.Status)
	if err != nil {
		return nil, err
	}
	details := map[string]any{"requested_status": string(status)}
	change, err := h.admin.ChangeStatus(ctx, userID, status)
	if err != nil {
		return &pipeline.Response{AuditDetails: details}, err
	}
	details["previous_status"] = string(change.Previous)
	details["sessions_terminated"] = change.SessionsTerminated
	resp := pipeline.OK(change)
	resp.AuditDetails = details
	return resp, nil
}

func (h *Handler) handleQueryAuditLogs(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	filter, page, err := parseAuditQuery(req)
	if err != nil {
		return nil, err
	}
	res, err := h.audit.Query(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	resp := pipeline.OK(res)
	resp.AuditDetails = map[string]any{"returned": len(res.Records), "query": req.HTTP.URL.RawQuery}
	return resp, nil
}

func parseAuditQuery(req *pipeline.Request) (audit.Filter, audit.Page, error) {
	var (
		filter audit.Filter
		page   audit.Page
		err    error
	)
	if raw := req.Query("actor_id"); raw != "" {
		if filter.ActorID, err = id.ParseUserID(raw); err != nil {
			return filter, page, err
		}
	}
	if raw := req.Query("action"); raw != "" {
		if filter.Action, err = audit.ParseAction(raw); err != nil {
			return filter, page, err
		}
	}
	filter.ResourceType = audit.ResourceType(req.Query("resource_type"))
	filter.ResourceID = req.Query("resource_id")
	if filter.From, err = parseTime(req.Query("from"), "from"); err != nil {
		return filter, page, err
	}
	if filter.To, err = parseTime(req.Query("to"), "to"); err != nil {
		return filter, page, err
	}
	if raw := req.Query("limit"); raw != "" {
		if page.Limit, err = strconv.Atoi(raw); err != nil || page.Limit < 0 {
			return filter, page, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer")
		}
	}
	page.Cursor = req.Query("cursor")
	return filter, page, nil
}

func parseTime(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func (h *Handler) handleExportAuditLogs(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	var body admin.ExportRequest
	if err := httputil.DecodeJSON(req.HTTP, &body); err != nil {
		return nil, err
	}
	format, err := audit.ParseFormat(body.Format)
	if err != nil {
		return nil, err
	}
	details := map[string]any{
		"from":   body.From.UTC().Format(time.RFC3339),
		"to":     body.To.UTC().Format(time.RFC3339),
		"format": string(format),
	}
	data, err := h.audit.Export(ctx, body.From.UTC(), body.To.UTC(), format)
	if err != nil {
		return &pipeline.Response{AuditDetails: details}, err
	}
	details["bytes"] = len(data)

	filename := fmt.Sprintf("audit-logs-%s-%s.%s",
		body.From.UTC().Format("20060102"), body.To.UTC().Format("20060102"), format)
	header := http.Header{}
	header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return &pipeline.Response{
		Status:       http.StatusOK,
		Raw:          data,
		ContentType:  format.ContentType(),
		Header:       header,
		AuditDetails: details,
	}, nil
}

func (h *Handler) handleSecuritySources(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	window := defaultSourceWindow
	if raw := req.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxSourceWindow {
			return nil, dErrors.New(dErrors.CodeValidation, "window must be a positive duration of at most 168h")
		}
		window = d
	}
	minAccounts := 0
	if raw := req.Query("min_accounts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, dErrors.New(dErrors.CodeValidation, "min_accounts must be a positive integer")
		}
		minAccounts = n
	}

	sources, err := h.sources.SuspiciousSources(ctx, window, minAccounts)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []attempts.SourceSummary{}
	}
	resp := pipeline.OK(admin.SecuritySourcesResponse{
		Window:  window.String(),
		Since:   requestcontext.Now(ctx).Add(-window),
		Sources: sources,
	})
	resp.AuditDetails = map[string]any{"window": window.String(), "sources": len(sources)}
	h.logger.DebugContext(ctx, "security sources viewed", "window", window.String(), "sources", len(sources))
	return resp, nil
}
