package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authentication outcomes. One instance is shared across
// handlers and exposed on /metrics by the app layer.
type Metrics struct {
	signups   *prometheus.CounterVec
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	federated *prometheus.CounterVec
}

// NewMetrics registers the auth counters on reg (the default registerer
// when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "signups_total",
			Help:      "Signup attempts by outcome.",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "logins_total",
			Help:      "Local login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "token_refreshes_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		federated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "federated_logins_total",
			Help:      "Federated login attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}

func (m *Metrics) signup(outcome string) {
	if m != nil {
		m.signups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) federatedLogin(provider, outcome string) {
	if m != nil {
		m.federated.WithLabelValues(provider, outcome).Inc()
	}
}
