package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, events []Event) error {
	for _, e := range events {
		level := slog.LevelInfo
		switch e.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "security event",
			"event_id", e.ID,
			"type", string(e.Type),
			"subject", e.Subject,
			"source_address", e.SourceAddress,
			"request_id", e.RequestID,
			"details", e.Details,
		)
	}
	return nil
}

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	PublishSync(ctx context.Context, key string, value []byte) error
}

// KafkaSink publishes events as JSON keyed by subject so one subject's events stay ordered.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, events []Event) error {
	var errs []error
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal event %s: %w", e.ID, err))
			continue
		}
		if err := s.producer.PublishSync(ctx, e.Subject, payload); err != nil {
			errs = append(errs, fmt.Errorf("publish event %s: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}
