package pipeline

import (
	"context"
	"maps"

	audit "adminguard/internal/audit/models"
	dErrors "adminguard/pkg/domain-errors"
)

// ResourceIDFunc extracts the audited resource id from a request.
type ResourceIDFunc func(req *Request) string

// FromParam reads the resource id from a URL path parameter.
func FromParam(name string) ResourceIDFunc {
	return func(req *Request) string {
		return req.Param(name)
	}
}

// AuditLogStage writes exactly one audit record per call, after the rest of the chain
// returns, errors or panics. A panic is re-raised once recorded.
type AuditLogStage struct {
	recorder     Recorder
	action       audit.Action
	resourceType audit.ResourceType
	resourceID   ResourceIDFunc
}

func AuditLog(recorder Recorder, action audit.Action, resourceType audit.ResourceType, resourceID ResourceIDFunc) *AuditLogStage {
	return &AuditLogStage{recorder: recorder, action: action, resourceType: resourceType, resourceID: resourceID}
}

func (s *AuditLogStage) Name() string { return "audit_log" }

func (s *AuditLogStage) Process(ctx context.Context, req *Request, next Handler) (resp *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.record(ctx, req, nil, audit.OutcomePanic, dErrors.CodeInternal)
			panic(p)
		}
	}()

	resp, err = next(ctx, req)
	if err != nil {
		s.record(ctx, req, resp, audit.OutcomeFailure, dErrors.CodeOf(err))
		return resp, err
	}
	s.record(ctx, req, resp, audit.OutcomeSuccess, "")
	return resp, nil
}

func (s *AuditLogStage) record(ctx context.Context, req *Request, resp *Response, outcome audit.Outcome, code dErrors.Code) {
	details := map[string]any{}
	if resp != nil {
		maps.Copy(details, resp.AuditDetails)
	}
	details[audit.DetailOutcome] = string(outcome)
	if code != "" {
		details[audit.DetailErrorCode] = string(code)
	}

	entry := audit.Entry{
		Action:       s.action,
		ResourceType: s.resourceType,
		Details:      details,
	}
	if s.resourceID != nil {
		entry.ResourceID = s.resourceID(req)
	}
	if p := req.Principal; p != nil {
		entry.ActorID = p.UserID
		entry.ActorEmail = p.Email
		entry.SessionID = p.SessionID
	}
	s.recorder.Record(ctx, entry)
}
