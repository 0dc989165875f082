package security

import (
	"context"
	"errors"
	"log/slog"

	"adminguard/pkg/platform/circuit"
)

// ErrSinkOpen is returned for batches skipped while a sink's breaker is open.
var ErrSinkOpen = errors.New("security sink circuit open")

// BreakerSink stops calling a failing sink until its breaker lets a retry through.
// Batches skipped in the meantime are dropped.
type BreakerSink struct {
	sink    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerSink(sink Sink, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerSink{sink: sink, breaker: breaker, logger: logger}
}

func (s *BreakerSink) Name() string { return s.sink.Name() }

func (s *BreakerSink) Write(ctx context.Context, events []Event) error {
	if !s.breaker.Allow() {
		return ErrSinkOpen
	}
	if err := s.sink.Write(ctx, events); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "security sink circuit opened", "sink", s.sink.Name(), "error", err)
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "security sink circuit closed", "sink", s.sink.Name())
	}
	return nil
}
