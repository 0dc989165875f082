package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"adminguard/internal/loginattempt/models"
)

type Metrics struct {
	Attempts          *prometheus.CounterVec
	Lockouts          prometheus.Counter
	SuspiciousSources prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_login_attempts_total",
			Help: "Login attempts by outcome and failure reason",
		}, []string{"outcome", "reason"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_account_lockouts_total",
			Help: "Accounts locked after consecutive failures",
		}),
		SuspiciousSources: factory.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_suspicious_sources_total",
			Help: "Source addresses flagged for failing against many accounts",
		}),
	}
}

func (m *Metrics) IncAttempt(success bool, reason models.FailureReason) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.Attempts.WithLabelValues(outcome, string(reason)).Inc()
}

func (m *Metrics) IncLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *Metrics) IncSuspiciousSource() {
	if m == nil {
		return
	}
	m.SuspiciousSources.Inc()
}
