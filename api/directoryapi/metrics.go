package directoryapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate decisions
const (
	decisionAllowed      = "allowed"
	decisionUnauthorized = "unauthorized"
	decisionForbidden    = "forbidden"
)

// Metrics holds the prometheus collectors of the directory API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gateDecisions *prometheus.CounterVec
	operations    *prometheus.CounterVec
}

// NewMetrics creates and registers the directory API collectors
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "userdir",
				Name:      "gate_decisions_total",
				Help:      "Access gate decisions by outcome.",
			}, []string{"decision"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "userdir",
				Name:      "directory_operations_total",
				Help:      "Directory operations that reached the store, by operation and result.",
			}, []string{"operation", "result"},
		),
	}
}

func (m *Metrics) gateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) operation(op string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.operations.WithLabelValues(op, result).Inc()
}
