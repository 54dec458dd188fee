package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransactionsScreened counts screened transactions by dispatch outcome
// (dispatched/suppressed/duplicate/quarantined/failed).
var TransactionsScreened = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "txmonitor_transactions_screened_total",
		Help: "Total number of transactions screened by the AML engine",
	},
	[]string{"outcome"},
)

// AlertsRaised counts dispatched alerts by severity tier.
var AlertsRaised = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "txmonitor_alerts_raised_total",
		Help: "Total number of AML alerts persisted and published",
	},
	[]string{"severity"},
)

// ScoringLatency records latency distribution of a full scoring pass.
// The SLA is p99 < 500ms, so buckets concentrate below one second.
var ScoringLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "txmonitor_scoring_latency_seconds",
		Help:    "Latency in seconds to score a single transaction",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
)

// Aggregate store read metrics
var (
	AggregateReadLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txmonitor_aggregate_read_latency_seconds",
			Help:    "Latency in seconds of windowed aggregate store reads",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"window"},
	)

	AggregateReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txmonitor_aggregate_read_errors_total",
			Help: "Total number of failed windowed aggregate store reads",
		},
		[]string{"window"},
	)
)

func init() {
	prometheus.MustRegister(TransactionsScreened, AlertsRaised, ScoringLatency)
	prometheus.MustRegister(AggregateReadLatency, AggregateReadErrors)
}
