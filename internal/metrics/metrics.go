package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run results
const (
	ResultPassed = "passed"
	ResultFailed = "failed"
	ResultError  = "error"
)

// Metrics holds all Prometheus metrics for plugincheck. It implements
// report.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Document metrics
	DocumentsValidatedTotal *prometheus.CounterVec
	ViolationsTotal         *prometheus.CounterVec

	// Contract metrics
	ContractChecksTotal   *prometheus.CounterVec
	ContractCheckDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Run metrics
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugincheck_runs_total",
				Help: "Total number of validation runs by result",
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugincheck_run_duration_seconds",
				Help:    "Duration of validation runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugincheck_last_run_timestamp_seconds",
				Help: "Unix time the last validation run finished",
			},
		),

		// Document metrics
		DocumentsValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugincheck_documents_validated_total",
				Help: "Total number of manifests that passed their own checks, by shape",
			},
			[]string{"shape"},
		),
		ViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugincheck_violations_total",
				Help: "Total number of reported violations by kind",
			},
			[]string{"kind"},
		),

		// Contract metrics
		ContractChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugincheck_contract_checks_total",
				Help: "Total number of remote contract definition lookups by status",
			},
			[]string{"status"},
		),
		ContractCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugincheck_contract_check_duration_seconds",
				Help:    "Duration of remote contract definition lookups in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.RunsTotal)
	m.registry.MustRegister(m.RunDuration)
	m.registry.MustRegister(m.LastRunTimestamp)

	m.registry.MustRegister(m.DocumentsValidatedTotal)
	m.registry.MustRegister(m.ViolationsTotal)

	m.registry.MustRegister(m.ContractChecksTotal)
	m.registry.MustRegister(m.ContractCheckDuration)
}

// DocumentValidated counts a manifest that passed its own checks
func (m *Metrics) DocumentValidated(shape string) {
	m.DocumentsValidatedTotal.WithLabelValues(shape).Inc()
}

// Violation counts a reported violation
func (m *Metrics) Violation(kind string) {
	m.ViolationsTotal.WithLabelValues(kind).Inc()
}

// ContractCheck records one remote definition lookup
func (m *Metrics) ContractCheck(status string, duration time.Duration) {
	m.ContractChecksTotal.WithLabelValues(status).Inc()
	m.ContractCheckDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRun records the outcome of one validation run
func (m *Metrics) ObserveRun(result string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(duration.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// for pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
