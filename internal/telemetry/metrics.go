package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for a build run.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	stageDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	policyViolations *prometheus.CounterVec
	errorsByClass    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. When cfg.Enabled is false, every
// recording method on the returned Metrics is a no-op.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_started_total", Help: "Total number of pipeline runs started",
		}, []string{"mode"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_completed_total", Help: "Total number of pipeline runs completed",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds", Help: "Duration of a full pipeline run",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds", Help: "Duration of an individual pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Total cache hits by cache layer",
		}, []string{"layer"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Total cache misses by cache layer",
		}, []string{"layer"}),
		policyViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "policy_violations_total", Help: "Total governance policy violations by severity",
		}, []string{"severity", "rule"}),
		errorsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Total errors by class",
		}, []string{"class"}),
	}

	registry.MustRegister(
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.stageDuration, m.cacheHits, m.cacheMisses,
		m.policyViolations, m.errorsByClass,
	)

	return m, nil
}

func (m *Metrics) RecordRunStarted(mode string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordStageDuration(stage string, duration time.Duration) {
	if m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit(layer string) {
	if m.cacheHits == nil {
		return
	}
	m.cacheHits.WithLabelValues(layer).Inc()
}

func (m *Metrics) RecordCacheMiss(layer string) {
	if m.cacheMisses == nil {
		return
	}
	m.cacheMisses.WithLabelValues(layer).Inc()
}

func (m *Metrics) RecordPolicyViolation(severity, rule string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(severity, rule).Inc()
}

func (m *Metrics) RecordError(class string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// Handler returns the HTTP handler that serves the metrics in Prometheus
// exposition format; StartServer mounts it at /metrics.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer runs a blocking HTTP server exposing the metrics handler at
// MetricsConfig.ListenAddress. Intended to be run in its own goroutine by
// the CLI's watch mode.
func (m *Metrics) StartServer() error {
	if !m.config.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	addr := m.config.ListenAddress
	if addr == "" {
		addr = ":9090"
	}
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
