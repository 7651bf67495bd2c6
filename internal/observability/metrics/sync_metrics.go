package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
	SyncStatusSkipped   = "skipped"
)

// SyncMetrics records warehouse sync outcomes scraped from /metrics.
type SyncMetrics struct {
	runs             *prometheus.CounterVec
	runDuration      prometheus.Observer
	resolverDuration *prometheus.HistogramVec
	rows             *prometheus.CounterVec
	resolverFailures *prometheus.CounterVec
	lastSuccess      prometheus.Gauge
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ordersync_sync_runs_total",
		Help:        "Warehouse sync runs by trigger and final status.",
		ConstLabels: labels,
	}, []string{"trigger", "status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "ordersync_sync_run_duration_seconds",
		Help:        "End-to-end warehouse sync latency.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: labels,
	})
	resolverDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "ordersync_sync_table_duration_seconds",
		Help:        "Per-table resolver latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		ConstLabels: labels,
	}, []string{"table"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ordersync_sync_rows_total",
		Help:        "Warehouse rows by table and outcome.",
		ConstLabels: labels,
	}, []string{"table", "outcome"})
	resolverFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ordersync_sync_table_failures_total",
		Help:        "Resolver failures by table and low-cardinality reason.",
		ConstLabels: labels,
	}, []string{"table", "reason"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "ordersync_sync_last_success_timestamp_seconds",
		Help:        "Unix time of the last completed warehouse sync.",
		ConstLabels: labels,
	})

	registerer.MustRegister(runs, runDuration, resolverDuration, rows, resolverFailures, lastSuccess)

	return &SyncMetrics{
		runs:             runs,
		runDuration:      runDuration,
		resolverDuration: resolverDuration,
		rows:             rows,
		resolverFailures: resolverFailures,
		lastSuccess:      lastSuccess,
	}
}

// ObserveRun records a finished sync run.
func (m *SyncMetrics) ObserveRun(trigger, status string, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(sanitizeLabel(trigger), sanitizeLabel(status)).Inc()
	if duration >= 0 {
		m.runDuration.Observe(duration.Seconds())
	}
	if status == SyncStatusCompleted && !finishedAt.IsZero() {
		m.lastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// ObserveTable records a resolver's latency and row counts.
func (m *SyncMetrics) ObserveTable(table string, duration time.Duration, inserted, updated, errored int) {
	if m == nil {
		return
	}
	table = sanitizeLabel(table)
	m.resolverDuration.WithLabelValues(table).Observe(duration.Seconds())
	if inserted > 0 {
		m.rows.WithLabelValues(table, "inserted").Add(float64(inserted))
	}
	if updated > 0 {
		m.rows.WithLabelValues(table, "updated").Add(float64(updated))
	}
	if errored > 0 {
		m.rows.WithLabelValues(table, "error").Add(float64(errored))
	}
}

// IncTableFailure increments the resolver failure counter with classification.
func (m *SyncMetrics) IncTableFailure(table string, err error) {
	if m == nil || err == nil {
		return
	}
	m.resolverFailures.WithLabelValues(sanitizeLabel(table), ClassifySchedulerJobReason(err)).Inc()
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
