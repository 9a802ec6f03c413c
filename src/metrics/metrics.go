// Package metrics holds the Prometheus collectors of the dashboard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apidash"

// Metrics owns a private registry so several instances (tests, servers) never clash.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	tlsFallbacks  prometheus.Counter
	fetchDuration prometheus.Histogram
	tableRows     prometheus.Gauge
	tableColumns  prometheus.Gauge
	sessions      prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Dashboard pipeline runs by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch attempts by result kind.",
		}, []string{"kind"}),
		tlsFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_fallbacks_total",
			Help:      "Fetches retried without certificate verification.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of one fetch including decoding.",
			Buckets:   prometheus.DefBuckets,
		}),
		tableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_table_rows",
			Help:      "Rows of the last successfully fetched table.",
		}),
		tableColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_table_columns",
			Help:      "Columns of the last successfully fetched table.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Live dashboard sessions.",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.fetches, m.tlsFallbacks, m.fetchDuration,
		m.tableRows, m.tableColumns, m.sessions,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry (for tests and custom handlers).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun counts a pipeline run; outcome is "ok", "halted" or "error".
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one fetch. kind is the fetcher error kind ("none" on success).
func (m *Metrics) ObserveFetch(kind string, elapsed time.Duration, fallback bool) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
	if fallback {
		m.tlsFallbacks.Inc()
	}
}

// ObserveTable records the shape of the last fetched table.
func (m *Metrics) ObserveTable(rows, columns int) {
	if m == nil {
		return
	}
	m.tableRows.Set(float64(rows))
	m.tableColumns.Set(float64(columns))
}

// SetSessions records the live session count.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
