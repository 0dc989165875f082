package pipeline

import (
	"log/slog"

	audit "adminguard/internal/audit/models"
	"adminguard/internal/permission"
	ratelimit "adminguard/internal/ratelimit/models"
)

// Tokens is the token service as the stages see it.
type Tokens interface {
	TokenParser
	TokenValidator
}

// Guard holds the collaborators every route shares and builds their stage lists.
type Guard struct {
	Limiter  RateLimiter
	Tokens   Tokens
	Sessions SessionToucher
	Recorder Recorder
	Logger   *slog.Logger
}

// Public rate-limits an unauthenticated route. Callers are keyed by source address.
func (g *Guard) Public(class ratelimit.Class) []Stage {
	return []Stage{RateLimit(g.Limiter, g.Tokens, class)}
}

// Authenticated rate-limits, authenticates and then requires perms.
func (g *Guard) Authenticated(class ratelimit.Class, perms ...permission.Permission) []Stage {
	return append([]Stage{RateLimit(g.Limiter, g.Tokens, class)},
		RequireAuth(g.Tokens, g.Sessions, g.Logger, perms...)...)
}

// Admin is the full default chain: RateLimit, Authenticate, Authorize, AuditLog.
func (g *Guard) Admin(class ratelimit.Class, action audit.Action, resourceType audit.ResourceType, resourceID ResourceIDFunc, perms ...permission.Permission) []Stage {
	return append(g.Authenticated(class, perms...), g.Audit(action, resourceType, resourceID))
}

func (g *Guard) Audit(action audit.Action, resourceType audit.ResourceType, resourceID ResourceIDFunc) Stage {
	return AuditLog(g.Recorder, action, resourceType, resourceID)
}

// PrincipalID reads the audited resource id from the principal, for routes that act on the caller.
func PrincipalID(req *Request) string {
	if req.Principal == nil {
		return ""
	}
	return req.Principal.UserID.String()
}
