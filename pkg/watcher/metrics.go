package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label names and values for watcher metrics.
const (
	LabelFrom    = "from"
	LabelTo      = "to"
	LabelResult  = "result"
	LabelOutcome = "outcome"

	ResultSuccess   = "success"
	ResultFatal     = "fatal"
	ResultTransient = "transient"
	ResultTimeout   = "timeout"
	ResultError     = "error"

	OutcomeDelivered  = "delivered"
	OutcomeSuppressed = "suppressed"
)

// Metrics provides Prometheus metrics for watches and notifications.
type Metrics struct {
	transitions   *prometheus.CounterVec
	sessionErrors prometheus.Counter
	rewatches     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	notifies      *prometheus.CounterVec
	registered    prometheus.Gauge
}

// NewMetrics creates and registers watcher metrics.
// If registry is nil, metrics will be created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "watch",
				Name:      "transitions_total",
				Help:      "Watch state transitions",
			},
			[]string{LabelFrom, LabelTo},
		),

		sessionErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "watch",
				Name:      "session_errors_total",
				Help:      "Watch session errors reported by the transport",
			},
		),

		rewatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "watch",
				Name:      "rewatch_total",
				Help:      "Rewatch attempts by result",
			},
			[]string{LabelResult},
		),

		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "watch",
				Name:      "notifications_total",
				Help:      "Inbound notifications by outcome",
			},
			[]string{LabelOutcome},
		),

		notifies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "notify",
				Name:      "sent_total",
				Help:      "Outbound notifies by result",
			},
			[]string{LabelResult},
		),

		registered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "objio",
				Subsystem: "watch",
				Name:      "registered",
				Help:      "Number of watches currently registered",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.transitions,
			m.sessionErrors,
			m.rewatches,
			m.notifications,
			m.notifies,
			m.registered,
		)
	}

	return m
}

// ObserveTransition records a state change.
func (m *Metrics) ObserveTransition(from, to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()

	switch {
	case to == StateRegistered:
		m.registered.Inc()
	case from == StateRegistered:
		m.registered.Dec()
	}
}

// ObserveSessionError records a watch session error.
func (m *Metrics) ObserveSessionError() {
	if m == nil {
		return
	}
	m.sessionErrors.Inc()
}

// ObserveRewatch records the outcome of a rewatch attempt.
func (m *Metrics) ObserveRewatch(result string) {
	if m == nil {
		return
	}
	m.rewatches.WithLabelValues(result).Inc()
}

// ObserveNotification records an inbound notification.
func (m *Metrics) ObserveNotification(suppressed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeDelivered
	if suppressed {
		outcome = OutcomeSuppressed
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// ObserveNotify records an outbound notify result.
func (m *Metrics) ObserveNotify(result string) {
	if m == nil {
		return
	}
	m.notifies.WithLabelValues(result).Inc()
}
