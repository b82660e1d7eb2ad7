package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReconcileReasonDeadlineExceeded     = "deadline_exceeded"
	ReconcileReasonDBLockTimeout        = "db_lock_timeout"
	ReconcileReasonSerializationFailure = "serialization_failure"
	ReconcileReasonUniqueViolation      = "unique_violation"
	ReconcileReasonDB                   = "db"
	ReconcileReasonUnknown              = "unknown"
)

const (
	ItemOutcomeSucceeded = "succeeded"
	ItemOutcomeFailed    = "failed"
	ItemOutcomeDeferred  = "deferred"
)

// ReconcileMetrics captures status reconciliation health signals.
type ReconcileMetrics struct {
	runs        prometheus.Counter
	duration    prometheus.Histogram
	timeouts    prometheus.Counter
	items       *prometheus.CounterVec
	itemErrors  *prometheus.CounterVec
	runLoopLag  prometheus.Histogram
	failedRuns  prometheus.Counter
	lastSuccess prometheus.Gauge
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconcile returns the singleton reconcile metrics registry.
func Reconcile() *ReconcileMetrics {
	return ReconcileWithConfig(Config{})
}

// ReconcileWithConfig returns the singleton reconcile metrics registry using config labels.
func ReconcileWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

// ResetReconcileMetricsForTest resets the singleton for tests.
func ResetReconcileMetricsForTest() {
	reconcileMetricsOnce = sync.Once{}
	reconcileMetrics = nil
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "acquiring"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &ReconcileMetrics{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "acquiring_reconcile_runs_total",
			Help:        "Status reconciliation runs.",
			ConstLabels: constLabels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "acquiring_reconcile_run_duration_seconds",
			Help:        "Status reconciliation run latency.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "acquiring_reconcile_timeouts_total",
			Help:        "Status reconciliation runs cut short by their deadline.",
			ConstLabels: constLabels,
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "acquiring_reconcile_items_total",
			Help:        "Payments visited by status reconciliation, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "acquiring_reconcile_item_errors_total",
			Help:        "Per-payment reconciliation failures by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "acquiring_reconcile_runloop_lag_seconds",
			Help:        "Reconciler loop lag beyond the configured interval.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}),
		failedRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "acquiring_reconcile_failed_runs_total",
			Help:        "Reconciliation runs that finished with at least one failed payment.",
			ConstLabels: constLabels,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "acquiring_reconcile_last_clean_run_timestamp_seconds",
			Help:        "Unix time of the last reconciliation run without failures.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.runs,
		m.duration,
		m.timeouts,
		m.items,
		m.itemErrors,
		m.runLoopLag,
		m.failedRuns,
		m.lastSuccess,
	)
	return m
}

func (m *ReconcileMetrics) IncRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *ReconcileMetrics) ObserveRun(elapsed time.Duration, failed bool, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if failed {
		m.failedRuns.Inc()
		return
	}
	m.lastSuccess.Set(float64(finishedAt.Unix()))
}

func (m *ReconcileMetrics) IncTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *ReconcileMetrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(outcome).Inc()
}

func (m *ReconcileMetrics) IncItemError(reason string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = ReconcileReasonUnknown
	}
	m.itemErrors.WithLabelValues(reason).Inc()
}

func (m *ReconcileMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifyInfraError maps context and database failures to a metrics reason.
// It returns the empty string for anything else.
func ClassifyInfraError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReconcileReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReconcileReasonUniqueViolation
	}
	if hasPGCode(err, "55P03") {
		return ReconcileReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReconcileReasonSerializationFailure
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ReconcileReasonDB
	}
	return ""
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
