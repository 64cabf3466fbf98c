package io

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label names for image metrics.
const (
	LabelOp = "op"
)

// Metrics provides Prometheus metrics for image requests.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	subRequests     *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewMetrics creates and registers image metrics.
// If registry is nil, metrics will be created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "requests_total",
				Help:      "Total number of image requests completed",
			},
			[]string{LabelOp},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "failures_total",
				Help:      "Total number of image requests that completed with an error",
			},
			[]string{LabelOp},
		),

		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "bytes_total",
				Help:      "Total bytes processed by successful image requests",
			},
			[]string{LabelOp},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "request_duration_seconds",
				Help:      "Latency of image requests from submit to completion",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{LabelOp},
		),

		subRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "sub_requests",
				Help:      "Number of object sub-requests per image request",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{LabelOp},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "objio",
				Subsystem: "image",
				Name:      "requests_in_flight",
				Help:      "Number of image requests submitted but not yet complete",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.requestsTotal,
			m.failuresTotal,
			m.bytesTotal,
			m.requestDuration,
			m.subRequests,
			m.inFlight,
		)
	}

	return m
}

// ObserveSubmit records a request entering the pipeline.
func (m *Metrics) ObserveSubmit() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// ObserveComplete records a finished request.
func (m *Metrics) ObserveComplete(op string, subRequests int, result int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.inFlight.Dec()
	m.requestsTotal.WithLabelValues(op).Inc()
	m.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
	m.subRequests.WithLabelValues(op).Observe(float64(subRequests))

	if result < 0 {
		m.failuresTotal.WithLabelValues(op).Inc()
		return
	}
	m.bytesTotal.WithLabelValues(op).Add(float64(result))
}
