// Package httpapi assembles the HTTP surface: shared middleware, health and metrics
// endpoints, and the domain route groups.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"adminguard/internal/platform/metrics"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/httputil"
	"adminguard/pkg/platform/middleware/device"
	"adminguard/pkg/platform/middleware/metadata"
	"adminguard/pkg/platform/middleware/request"
	"adminguard/pkg/platform/middleware/requesttime"
	"adminguard/pkg/requestcontext"
)

const requestTimeout = 30 * time.Second

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the cross-cutting collaborators of the router.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Health   map[string]HealthCheck
	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
	// Clock overrides the request clock; nil means time.Now.
	Clock func() time.Time
}

// NewRouter builds the root handler. Middleware runs outermost first: request id,
// request time, client metadata, device id, recovery, access log, metrics, timeout.
func NewRouter(deps Deps, groups ...Registrar) http.Handler {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(metadata.ClientMetadata(deps.TrustedProxies))
	r.Use(device.Middleware)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(chimw.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(r.Context(), w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorBody{Error: httputil.ErrorDetail{
			Code:      "method_not_allowed",
			Message:   "method not allowed",
			RequestID: requestcontext.RequestID(r.Context()),
		}})
	})

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}
	for _, g := range groups {
		g.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
