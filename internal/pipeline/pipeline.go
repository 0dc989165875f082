// Package pipeline composes the per-route admin request stages: rate limiting,
// authentication, authorization and audit logging.
//
// Stages are folded into a single Handler by Chain, first stage outermost. Any subset of
// stages composes; the admin default is RateLimit, Authenticate, Authorize, AuditLog.
package pipeline

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"adminguard/internal/permission"
	ratelimit "adminguard/internal/ratelimit/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
)

const tracerName = "adminguard/pipeline"

// Principal is the authenticated caller, built from a validated access token.
type Principal struct {
	UserID      id.UserID
	SessionID   id.SessionID
	Email       string
	Role        permission.Role
	Permissions permission.Set
	DeviceID    string
}

// Request is one inbound call as seen by the stages. Stages fill Principal and RateLimit.
type Request struct {
	HTTP      *http.Request
	Principal *Principal
	RateLimit *ratelimit.Result
}

// Param returns a URL path parameter.
func (r *Request) Param(name string) string {
	if r.HTTP == nil {
		return ""
	}
	return chi.URLParam(r.HTTP, name)
}

// Query returns a query string value.
func (r *Request) Query(name string) string {
	if r.HTTP == nil {
		return ""
	}
	return r.HTTP.URL.Query().Get(name)
}

// Response is a handler result. Body is encoded as JSON unless Raw is set.
type Response struct {
	Status      int
	Body        any
	Raw         []byte
	ContentType string
	Header      http.Header

	// AuditDetails are merged into the audit record written for this call.
	AuditDetails map[string]any
}

// OK is a 200 JSON response.
func OK(body any) *Response {
	return &Response{Status: http.StatusOK, Body: body}
}

type Handler func(ctx context.Context, req *Request) (*Response, error)

// Stage either calls next or short-circuits with a typed error.
type Stage interface {
	Name() string
	Process(ctx context.Context, req *Request, next Handler) (*Response, error)
}

// Chain folds stages around h. stages[0] runs first.
func Chain(h Handler, stages ...Stage) Handler {
	tracer := otel.Tracer(tracerName)
	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		next := h
		h = func(ctx context.Context, req *Request) (*Response, error) {
			ctx, span := tracer.Start(ctx, "pipeline."+stage.Name(), trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			resp, err := stage.Process(ctx, req, next)
			if err != nil {
				code := dErrors.CodeOf(err)
				span.SetAttributes(attribute.String("error.code", string(code)))
				span.SetStatus(codes.Error, string(code))
			}
			return resp, err
		}
	}
	return h
}
