package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Duplicate-suppression reasons used as label values
const (
	ReasonAlreadySent = "already_sent"
	ReasonInFlight    = "in_flight"
	ReasonContent     = "content"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SendSuccesses       prometheus.Counter
	SendFailures        prometheus.Counter
	DuplicatesPrevented *prometheus.CounterVec
	RetryAttempts       prometheus.Counter
	RetryExhaustions    prometheus.Counter
	DispatchDuration    prometheus.Histogram
	SweepRuns           prometheus.Counter
	SweepFailures       prometheus.Counter
	SweepDeletedRecords prometheus.Counter
	SweepDeletedLogs    prometheus.Counter
}

// New creates Prometheus metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SendSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_send_successes_total",
			Help: "Total number of emails accepted by the transport",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_send_failures_total",
			Help: "Total number of failed transport calls",
		}),
		DuplicatesPrevented: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casemail_duplicates_prevented_total",
			Help: "Total number of suppressed duplicate sends by reason",
		}, []string{"reason"}),
		RetryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_retry_attempts_total",
			Help: "Total number of transport calls beyond the first attempt for a key",
		}),
		RetryExhaustions: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_retry_exhaustions_total",
			Help: "Total number of sends rejected because the retry bound was reached",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "casemail_dispatch_duration_seconds",
			Help:    "Time spent dispatching a single email request",
			Buckets: prometheus.DefBuckets,
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_sweep_runs_total",
			Help: "Total number of retention sweep executions",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_sweep_failures_total",
			Help: "Total number of failed retention sweep executions",
		}),
		SweepDeletedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_sweep_deleted_records_total",
			Help: "Total number of expired idempotency records deleted by the sweeper",
		}),
		SweepDeletedLogs: factory.NewCounter(prometheus.CounterOpts{
			Name: "casemail_sweep_deleted_logs_total",
			Help: "Total number of stale deduplication log entries deleted by the sweeper",
		}),
	}
}
