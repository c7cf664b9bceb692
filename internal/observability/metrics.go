// Package observability provides Prometheus metrics for the chat relay.
//
// Metrics are exposed on /metrics. All operations are safe for concurrent use.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "chat_relay"
	relaySubsystem   = "relay"
)

// Outcome labels for relay requests.
const (
	OutcomeOK      = "ok"
	OutcomeBlocked = "blocked"
	OutcomeEmpty   = "empty"
)

// Metrics holds the relay's counters, histograms and gauges.
type Metrics struct {
	// RequestsTotal counts chat requests by outcome
	// (ok, blocked, empty, or an error kind).
	RequestsTotal *prometheus.CounterVec

	// UpstreamDurationSeconds measures upstream call latency by outcome.
	UpstreamDurationSeconds *prometheus.HistogramVec

	// ActiveSessions tracks sessions currently held in memory.
	ActiveSessions prometheus.Gauge

	// SweptSessionsTotal counts sessions removed by the expiry sweep.
	SweptSessionsTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics with reg. A nil reg
// creates unregistered metrics, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "requests_total",
				Help:      "Total number of chat relay requests by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "upstream_duration_seconds",
				Help:      "Upstream completion call duration by outcome",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 25, 30},
			},
			[]string{"outcome"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Number of conversation sessions held in memory",
			},
		),
		SweptSessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "sessions",
				Name:      "swept_total",
				Help:      "Total number of sessions removed for inactivity",
			},
		),
	}
}

// RecordRequest counts one finished chat request.
func (m *Metrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstream observes one upstream call.
func (m *Metrics) RecordUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetActiveSessions updates the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordSwept counts sessions removed by a sweep.
func (m *Metrics) RecordSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptSessionsTotal.Add(float64(n))
}
