// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsIngested    *prometheus.CounterVec
	EventsStored      prometheus.Counter
	DecodeErrors      *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
	HighestBlockSeen  prometheus.Gauge

	// Live feed metrics
	FeedConnects   prometheus.Counter
	FeedReconnects prometheus.Counter
	FeedMessages   prometheus.Counter

	// Backtest metrics
	RunsTotal        *prometheus.CounterVec
	TicksProcessed   prometheus.Counter
	SnapshotsWritten prometheus.Counter
	RunDuration      prometheus.Histogram

	// Cross-validation metrics
	FoldRuns     prometheus.Counter
	FoldsSkipped prometheus.Counter

	// Orchestrator metrics
	PhaseRunsTotal *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Chain access metrics
	RPCCallLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulRun       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "amm_strategy_lab"
	}

	return &Metrics{
		// Ingestion metrics
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_ingested_total",
			Help:      "Total number of pool events ingested by kind",
		}, []string{"kind"}),
		EventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_stored_total",
			Help:      "Total number of pool events stored to database",
		}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "decode_errors_total",
			Help:      "Total number of log decode errors by kind",
		}, []string{"kind"}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate events skipped",
		}),
		HighestBlockSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_block_seen",
			Help:      "Highest Ethereum block number seen",
		}),

		// Live feed metrics
		FeedConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connects_total",
			Help:      "Total number of websocket feed connects",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of websocket feed reconnects",
		}),
		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of websocket log messages received",
		}),

		// Backtest metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "ticks_processed_total",
			Help:      "Total number of simulation ticks processed",
		}),
		SnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "snapshots_written_total",
			Help:      "Total number of portfolio snapshot rows written",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		// Cross-validation metrics
		FoldRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crossval",
			Name:      "fold_runs_total",
			Help:      "Total number of cross-validation folds run",
		}),
		FoldsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crossval",
			Name:      "folds_skipped_total",
			Help:      "Total number of empty folds skipped",
		}),

		// Orchestrator metrics
		PhaseRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "phase_runs_total",
			Help:      "Total number of orchestrator phase runs by status",
		}, []string{"phase", "status"}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "phase_duration_seconds",
			Help:      "Orchestrator phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Chain access metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventsIngested increments the events ingested counter for a kind.
func RecordEventsIngested(kind string, n int) {
	DefaultMetrics.EventsIngested.WithLabelValues(kind).Add(float64(n))
}

// RecordEventsStored increments the events stored counter.
func RecordEventsStored(n int) {
	DefaultMetrics.EventsStored.Add(float64(n))
}

// RecordDecodeError records a log decode error.
func RecordDecodeError(kind string) {
	DefaultMetrics.DecodeErrors.WithLabelValues(kind).Inc()
}

// UpdateHighestBlock updates the highest block seen gauge.
func UpdateHighestBlock(block int64) {
	DefaultMetrics.HighestBlockSeen.Set(float64(block))
}

// RecordRun records a completed backtest run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordTicks adds to the ticks processed counter.
func RecordTicks(n int) {
	DefaultMetrics.TicksProcessed.Add(float64(n))
}

// RecordFold records one cross-validation fold, skipped or run.
func RecordFold(skipped bool) {
	DefaultMetrics.FoldRuns.Inc()
	if skipped {
		DefaultMetrics.FoldsSkipped.Inc()
	}
}

// RecordPhase records an orchestrator phase run.
func RecordPhase(phase, status string, durationSeconds float64) {
	DefaultMetrics.PhaseRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
