package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"adminguard/internal/audit/models"
	"adminguard/internal/security"
	"adminguard/pkg/requestcontext"
)

// Record appends one audit record built from entry. Fields the entry leaves empty are taken
// from the request context. The write is detached from ctx cancellation so a record outlives
// the request that triggered it.
func (s *Service) Record(ctx context.Context, entry models.Entry) {
	enrich(ctx, &entry)
	record, err := models.NewRecord(entry, requestcontext.Now(ctx))
	if err != nil {
		s.fail(ctx, ReasonInvalidEntry, entryAttrs(entry), err)
		return
	}

	detached := context.WithoutCancel(ctx)
	if s.queue == nil {
		s.write(detached, record)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		s.write(detached, record)
		return
	}
	select {
	case s.queue <- record:
	default:
		s.fail(ctx, ReasonQueueFull, recordAttrs(record), nil)
	}
}

// Run consumes the async queue until ctx is cancelled, then drains what is left.
// It returns immediately when the recorder is synchronous.
func (s *Service) Run(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case record := <-s.queue:
					s.write(context.WithoutCancel(ctx), record)
				}
			}
		}()
	}
	wg.Wait()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.drain(context.WithoutCancel(ctx))
	return nil
}

func (s *Service) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case record := <-s.queue:
			s.write(ctx, record)
		default:
			return
		}
	}
}

func (s *Service) write(ctx context.Context, record *models.Record) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Append(ctx, record)
	s.metrics.ObserveWrite(time.Since(start).Seconds())
	if err != nil {
		s.fail(ctx, ReasonStoreError, recordAttrs(record), err)
		return
	}
	s.metrics.IncWritten()
}

func (s *Service) fail(ctx context.Context, reason string, attrs []any, err error) {
	s.metrics.IncFailure(reason)
	attrs = append(attrs, "reason", reason)
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.fallback.ErrorContext(ctx, "audit record not persisted", attrs...)
	s.publisher.Publish(ctx, security.NewEvent(ctx, security.EventAuditWriteFailed, security.SeverityCritical,
		"audit", map[string]any{"reason": reason}))
}

func enrich(ctx context.Context, e *models.Entry) {
	if e.ActorID.IsNil() {
		e.ActorID = requestcontext.UserID(ctx)
	}
	if e.SessionID.IsNil() {
		e.SessionID = requestcontext.SessionID(ctx)
	}
	if e.SourceAddress == "" {
		e.SourceAddress = requestcontext.ClientIP(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
}

func recordAttrs(r *models.Record) []any {
	return []any{
		"audit_id", r.ID.String(),
		"timestamp", r.Timestamp,
		"actor_id", r.ActorID.String(),
		"actor_email", r.ActorEmail,
		"action", string(r.Action),
		"resource_type", string(r.ResourceType),
		"resource_id", r.ResourceID,
		slog.Any("details", r.Details),
		"source_address", r.SourceAddress,
		"session_id", r.SessionID.String(),
		"request_id", r.RequestID,
	}
}

func entryAttrs(e models.Entry) []any {
	return []any{
		"actor_id", e.ActorID.String(),
		"actor_email", e.ActorEmail,
		"action", string(e.Action),
		"resource_type", string(e.ResourceType),
		"resource_id", e.ResourceID,
		slog.Any("details", e.Details),
		"request_id", e.RequestID,
	}
}
