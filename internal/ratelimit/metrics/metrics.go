package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks        *prometheus.CounterVec
	Denials       *prometheus.CounterVec
	StoreFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_rate_limit_checks_total",
			Help: "Rate limit checks by class and tier",
		}, []string{"class", "tier"}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_rate_limit_denials_total",
			Help: "Requests denied by the rate limiter by class and tier",
		}, []string{"class", "tier"}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_rate_limit_store_failures_total",
			Help: "Rate limit checks that failed closed because the counter store was unavailable",
		}),
	}
}

func (m *Metrics) IncrementChecks(class, tier string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(class, tier).Inc()
}

func (m *Metrics) IncrementDenials(class, tier string) {
	if m == nil {
		return
	}
	m.Denials.WithLabelValues(class, tier).Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	if m == nil {
		return
	}
	m.StoreFailures.Inc()
}
