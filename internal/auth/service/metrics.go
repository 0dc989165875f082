package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonManual       = "manual"
	reasonTerminateAll = "terminate_all"
	reasonCapExceeded  = "cap_exceeded"
)

// Metrics tracks session lifecycle counters. A nil *Metrics records nothing.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsTerminated *prometheus.CounterVec
	SessionsDeleted    prometheus.Counter
	SweepDuration      prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsTerminated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_sessions_terminated_total",
			Help: "Total number of sessions terminated by reason",
		}, []string{"reason"}),
		SessionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_sessions_swept_total",
			Help: "Total number of ended session records deleted by the sweeper",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adminguard_session_sweep_duration_seconds",
			Help:    "Latency of session sweeper passes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) IncTerminated(reason string) {
	if m == nil {
		return
	}
	m.SessionsTerminated.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsDeleted.Add(float64(n))
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}
