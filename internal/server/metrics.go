package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agbru/fibnet/internal/session"
)

// MetricsNamespace prefixes every metric exported by the server.
const MetricsNamespace = "fibnet"

// Metrics holds the Prometheus collectors of one server. Each instance owns
// its registry, so several servers (and tests) never collide on
// registration.
//
// Metrics implements session.Observer.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	activeSessions  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	requestsTotal   *prometheus.CounterVec
	computeDuration prometheus.Histogram
	sessionErrors   *prometheus.CounterVec

	adminActive   prometheus.Gauge
	adminRequests *prometheus.CounterVec
}

var _ session.Observer = (*Metrics)(nil)

// NewMetrics creates a registry with the Go runtime and process collectors
// plus the server's own metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of client connections currently being served.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "sessions_total",
			Help:      "Total number of accepted client connections.",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "requests_total",
			Help:      "Total number of answered requests by outcome.",
		}, []string{"outcome"}),
		computeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing Fibonacci numbers.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12),
		}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "session_errors_total",
			Help:      "Sessions that ended on something other than a clean end of stream.",
		}, []string{"kind"}),
		adminActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "admin_active_requests",
			Help:      "Number of admin HTTP requests in flight.",
		}),
		adminRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "admin_requests_total",
			Help:      "Total number of admin HTTP requests by path.",
		}, []string{"path"}),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// SessionOpened counts an accepted connection.
func (m *Metrics) SessionOpened() {
	m.activeSessions.Inc()
	m.sessionsTotal.Inc()
}

// SessionClosed records the end of a connection.
func (m *Metrics) SessionClosed(reason session.CloseReason) {
	m.activeSessions.Dec()
	if reason != session.CloseEOF {
		m.sessionErrors.WithLabelValues(string(reason)).Inc()
	}
}

// RequestServed records one answered request. Rejected requests carry a
// zero compute duration and are not observed by the histogram.
func (m *Metrics) RequestServed(outcome session.Outcome, compute time.Duration) {
	m.requestsTotal.WithLabelValues(string(outcome)).Inc()
	if compute > 0 {
		m.computeDuration.Observe(compute.Seconds())
	}
}

// IncrementActiveRequests increments the admin in-flight gauge.
func (m *Metrics) IncrementActiveRequests() { m.adminActive.Inc() }

// DecrementActiveRequests decrements the admin in-flight gauge.
func (m *Metrics) DecrementActiveRequests() { m.adminActive.Dec() }

// WritePrometheus serves the registry in the Prometheus exposition format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
