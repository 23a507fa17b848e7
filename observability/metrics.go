// Package observability provides Prometheus metrics for routing turns,
// handler selection, generator calls and action invocations.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GeneratorBuckets defines histogram buckets suited for generator backed
// turns, ranging from 10ms to 120s.
var GeneratorBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics bundles the collectors of one router/runner stack. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	TurnsTotal             *prometheus.CounterVec
	TurnDuration           prometheus.Histogram
	HandlerSelectionsTotal *prometheus.CounterVec
	ClarificationsTotal    *prometheus.CounterVec
	GeneratorCallsTotal    *prometheus.CounterVec
	ActionInvocationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them globally or a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentroute_turns_total",
				Help: "Turns processed by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentroute_turn_duration_seconds",
				Help:    "Turn duration",
				Buckets: GeneratorBuckets,
			},
		),
		HandlerSelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentroute_handler_selections_total",
				Help: "Requests delegated per handler",
			},
			[]string{"handler"},
		),
		ClarificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentroute_clarifications_total",
				Help: "Requests answered with a clarification",
			},
			[]string{"reason"},
		),
		GeneratorCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentroute_generator_calls_total",
				Help: "Generator calls by purpose and status",
			},
			[]string{"purpose", "status"},
		),
		ActionInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentroute_action_invocations_total",
				Help: "Action invocations",
			},
			[]string{"handler", "action", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.TurnsTotal,
			m.TurnDuration,
			m.HandlerSelectionsTotal,
			m.ClarificationsTotal,
			m.GeneratorCallsTotal,
			m.ActionInvocationsTotal,
		)
	}

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(dur.Seconds())
}

// HandlerSelected records a delegation decision.
func (m *Metrics) HandlerSelected(handler string) {
	if m == nil {
		return
	}
	m.HandlerSelectionsTotal.WithLabelValues(handler).Inc()
}

// Clarified records a clarification decision.
func (m *Metrics) Clarified(reason string) {
	if m == nil {
		return
	}
	m.ClarificationsTotal.WithLabelValues(reason).Inc()
}

// GeneratorCalled records a generator call.
func (m *Metrics) GeneratorCalled(purpose string, err error) {
	if m == nil {
		return
	}
	m.GeneratorCallsTotal.WithLabelValues(purpose, status(err)).Inc()
}

// ActionInvoked records an action invocation.
func (m *Metrics) ActionInvoked(handler, action string, err error) {
	if m == nil {
		return
	}
	m.ActionInvocationsTotal.WithLabelValues(handler, action, status(err)).Inc()
}
