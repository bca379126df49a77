package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts indexed ledger events by kind and outcome
	// (applied, noop, skipped, failed).
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_indexer_events_total",
			Help: "Total number of ledger events seen by the indexer",
		},
		[]string{"kind", "outcome"},
	)

	// IndexerPolls counts event page polls by result (events, empty, error).
	IndexerPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_indexer_polls_total",
			Help: "Total number of event page polls",
		},
		[]string{"result"},
	)

	// IndexerEventsCursor tracks the event count recorded on each persisted cursor.
	IndexerEventsCursor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "purgatory_indexer_cursor_events",
			Help: "Events processed up to the persisted cursor",
		},
		[]string{"cursor"},
	)

	// ReputationReports counts disposal reports counted into reputation by reason.
	ReputationReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_reputation_reports_total",
			Help: "Total number of disposal reports counted into collection reputation",
		},
		[]string{"reason"},
	)

	// ReaperRuns counts reaper runs by final status.
	ReaperRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_reaper_runs_total",
			Help: "Total number of reaper runs",
		},
		[]string{"status"},
	)

	// ReaperRunsSkipped counts schedule ticks dropped because a run was in flight.
	ReaperRunsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purgatory_reaper_runs_skipped_total",
			Help: "Total number of scheduled reaper runs skipped while another was in flight",
		},
	)

	// ReaperItems counts reclaimed items by outcome (purged, failed).
	ReaperItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_reaper_items_total",
			Help: "Total number of expired items processed by the reaper",
		},
		[]string{"outcome"},
	)

	// ReaperRunDuration tracks reaper run duration.
	ReaperRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purgatory_reaper_run_duration_seconds",
			Help:    "Reaper run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	// ReaperGasUsed tracks gas consumed per reclamation transaction, in MIST.
	ReaperGasUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purgatory_reaper_gas_used_mist",
			Help:    "Gas used per reclamation transaction in MIST",
			Buckets: prometheus.ExponentialBuckets(1_000_000, 2, 10),
		},
	)

	// ReaperBalance tracks the reaper wallet balance in SUI.
	ReaperBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purgatory_reaper_balance_sui",
			Help: "Reaper wallet balance in SUI",
		},
	)

	// ErrorsTotal counts errors by component and type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purgatory_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
