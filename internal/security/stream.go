package security

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink delivers a batch of events somewhere durable.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []Event) error
}

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
)

// Stream buffers events in memory and flushes them to every sink from a background loop.
type Stream struct {
	buffer        *RingBuffer
	sinks         []Sink
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
	notify        chan struct{}

	published *prometheus.CounterVec
	dropped   prometheus.Counter
	failures  *prometheus.CounterVec
}

type StreamOption func(*Stream)

func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

func WithBufferSize(n int) StreamOption {
	return func(s *Stream) {
		s.buffer = NewRingBuffer(n)
	}
}

func WithFlushInterval(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithRegisterer registers the stream counters on reg.
func WithRegisterer(reg prometheus.Registerer) StreamOption {
	return func(s *Stream) {
		factory := promauto.With(reg)
		s.published = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_security_events_total",
			Help: "Security events published by type",
		}, []string{"type"})
		s.dropped = factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_security_events_dropped_total",
			Help: "Security events dropped because the buffer was full",
		})
		s.failures = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_security_sink_failures_total",
			Help: "Failed security event batch deliveries by sink",
		}, []string{"sink"})
	}
}

func NewStream(sinks []Sink, opts ...StreamOption) (*Stream, error) {
	if len(sinks) == 0 {
		return nil, errors.New("at least one security sink is required")
	}
	s := &Stream{
		buffer:        NewRingBuffer(0),
		sinks:         sinks,
		logger:        slog.Default(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Publish enqueues the event and wakes the flusher. It never blocks on I/O.
func (s *Stream) Publish(_ context.Context, event Event) {
	if s.buffer.Enqueue(event) && s.dropped != nil {
		s.dropped.Inc()
	}
	if s.published != nil {
		s.published.WithLabelValues(string(event.Type)).Inc()
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run flushes buffered events until ctx is cancelled, then drains what is left.
func (s *Stream) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			s.Flush(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		case <-s.notify:
			s.Flush(ctx)
		}
	}
}

// Flush delivers everything currently buffered. Sink errors are logged; a failed batch
// is not retried.
func (s *Stream) Flush(ctx context.Context) {
	for {
		batch := s.buffer.DequeueBatch(s.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, sink := range s.sinks {
			if err := sink.Write(ctx, batch); err != nil {
				if s.failures != nil {
					s.failures.WithLabelValues(sink.Name()).Inc()
				}
				s.logger.ErrorContext(ctx, "security event delivery failed",
					"sink", sink.Name(),
					"events", len(batch),
					"error", err,
				)
			}
		}
	}
}
