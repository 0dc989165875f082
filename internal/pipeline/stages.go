package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	audit "adminguard/internal/audit/models"
	"adminguard/internal/auth/token"
	"adminguard/internal/permission"
	ratelimit "adminguard/internal/ratelimit/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

// RateLimiter counts one request against the (subject, class) budget.
type RateLimiter interface {
	Check(ctx context.Context, subject string, role permission.Role, class ratelimit.Class) (ratelimit.Result, error)
}

// TokenParser reads token claims without consulting the session store.
type TokenParser interface {
	Parse(ctx context.Context, tokenString string, want token.Type) (*token.Claims, error)
}

// TokenValidator authorizes an access token, including its session.
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (*token.Claims, error)
}

// SessionToucher refreshes a session's last activity.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID id.SessionID)
}

// Recorder appends audit records and never fails the caller.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

func bearerToken(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	tok = strings.TrimSpace(tok)
	return tok, ok && tok != ""
}

// RateLimitStage keys the budget on the token subject when a parseable access token is
// present and on the source address otherwise. Parsing here is only for keying; it
// never authenticates.
type RateLimitStage struct {
	limiter RateLimiter
	parser  TokenParser
	class   ratelimit.Class
}

func RateLimit(limiter RateLimiter, parser TokenParser, class ratelimit.Class) *RateLimitStage {
	return &RateLimitStage{limiter: limiter, parser: parser, class: class}
}

func (s *RateLimitStage) Name() string { return "rate_limit" }

func (s *RateLimitStage) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	subject := requestcontext.ClientIP(ctx)
	var role permission.Role
	if tok, ok := bearerToken(req.HTTP); ok && s.parser != nil {
		if claims, err := s.parser.Parse(ctx, tok, token.TypeAccess); err == nil {
			subject = claims.Subject
			role = permission.Role(claims.Role)
		}
	}
	if subject == "" {
		subject = "unknown"
	}

	result, err := s.limiter.Check(ctx, subject, role, s.class)
	if err != nil {
		return nil, err
	}
	req.RateLimit = &result
	if !result.Allowed {
		return nil, dErrors.RateLimited("rate limit exceeded", result.RetryAfter)
	}
	return next(ctx, req)
}

// AuthenticateStage validates the bearer token and its session, then touches the session.
type AuthenticateStage struct {
	validator TokenValidator
	sessions  SessionToucher
	logger    *slog.Logger
}

func Authenticate(validator TokenValidator, sessions SessionToucher, logger *slog.Logger) *AuthenticateStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthenticateStage{validator: validator, sessions: sessions, logger: logger}
}

func (s *AuthenticateStage) Name() string { return "authenticate" }

func (s *AuthenticateStage) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	tok, ok := bearerToken(req.HTTP)
	if !ok {
		s.logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestcontext.RequestID(ctx))
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	claims, err := s.validator.Validate(ctx, tok)
	if err != nil {
		s.logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	principal, err := principalFrom(claims)
	if err != nil {
		return nil, err
	}
	req.Principal = principal

	ctx = requestcontext.WithUserID(ctx, principal.UserID)
	ctx = requestcontext.WithSessionID(ctx, principal.SessionID)
	if principal.DeviceID != "" {
		ctx = requestcontext.WithDeviceID(ctx, principal.DeviceID)
	}
	s.sessions.Touch(ctx, principal.SessionID)
	return next(ctx, req)
}

func principalFrom(claims *token.Claims) (*Principal, error) {
	userID, err := claims.UserID()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := claims.Session()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token session")
	}
	perms, err := claims.PermissionSet()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token permissions")
	}
	return &Principal{
		UserID:      userID,
		SessionID:   sessionID,
		Email:       claims.Email,
		Role:        permission.Role(claims.Role),
		Permissions: perms,
		DeviceID:    claims.DeviceID,
	}, nil
}

// AuthorizeStage requires every listed permission. It must run after Authenticate.
type AuthorizeStage struct {
	required []permission.Permission
	logger   *slog.Logger
}

func Authorize(logger *slog.Logger, required ...permission.Permission) *AuthorizeStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizeStage{required: required, logger: logger}
}

func (s *AuthorizeStage) Name() string { return "authorize" }

func (s *AuthorizeStage) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if req.Principal == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if missing := req.Principal.Permissions.Missing(s.required...); len(missing) > 0 {
		s.logger.WarnContext(ctx, "permission denied",
			"user_id", req.Principal.UserID.String(),
			"role", req.Principal.Role.String(),
			"missing", missing,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "missing required permission")
	}
	return next(ctx, req)
}

// RequireAuth is Authenticate followed by Authorize.
func RequireAuth(validator TokenValidator, sessions SessionToucher, logger *slog.Logger, required ...permission.Permission) []Stage {
	return []Stage{Authenticate(validator, sessions, logger), Authorize(logger, required...)}
}
