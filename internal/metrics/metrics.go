// Package metrics exposes Prometheus instrumentation for cleaning operations.
//
// Metrics live on a private registry rather than the global default so that
// tests can build as many instances as they like. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the collectors for the engine.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.HistogramVec
	cleared    *prometheus.CounterVec
	parsing    prometheus.Gauge
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datacleaner",
			Name:      "operations_total",
			Help:      "Session operations by name and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datacleaner",
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency, including load and store.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		rows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datacleaner",
			Name:      "table_rows",
			Help:      "Row count of the table after each successful operation.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
		}, []string{"op"}),
		cleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datacleaner",
			Name:      "sessions_cleared_total",
			Help:      "Sessions cleared, by reason.",
		}, []string{"reason"}),
		parsing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datacleaner",
			Name:      "uploads_parsing",
			Help:      "Uploads currently being parsed.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.rows,
		m.cleared,
		m.parsing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRows records the table size left by an operation.
func (m *Metrics) ObserveRows(op string, rows int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(op).Observe(float64(rows))
}

// SessionCleared counts a session teardown.
func (m *Metrics) SessionCleared(reason string) {
	if m == nil {
		return
	}
	m.cleared.WithLabelValues(reason).Inc()
}

// SessionsExpired counts sessions removed by the expiry sweeper.
func (m *Metrics) SessionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleared.WithLabelValues("expired").Add(float64(n))
}

// ParseStarted and ParseFinished bracket an upload parse.
func (m *Metrics) ParseStarted() {
	if m == nil {
		return
	}
	m.parsing.Inc()
}

func (m *Metrics) ParseFinished() {
	if m == nil {
		return
	}
	m.parsing.Dec()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
