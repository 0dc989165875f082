package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write failure reasons.
const (
	ReasonStoreError   = "store_error"
	ReasonQueueFull    = "queue_full"
	ReasonInvalidEntry = "invalid_entry"
)

type Metrics struct {
	RecordsWritten prometheus.Counter
	WriteFailures  *prometheus.CounterVec
	WriteDuration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_audit_records_written_total",
			Help: "Audit records persisted",
		}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_audit_write_failures_total",
			Help: "Audit records that went to the fallback log instead of the store",
		}, []string{"reason"}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adminguard_audit_write_duration_seconds",
			Help:    "Latency of audit store appends",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncWritten() {
	if m == nil {
		return
	}
	m.RecordsWritten.Inc()
}

func (m *Metrics) IncFailure(reason string) {
	if m == nil {
		return
	}
	m.WriteFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveWrite(seconds float64) {
	if m == nil {
		return
	}
	m.WriteDuration.Observe(seconds)
}
