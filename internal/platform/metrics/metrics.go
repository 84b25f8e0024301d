package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FeedRowsIngested *prometheus.CounterVec
	FeedRowsSkipped  *prometheus.CounterVec
	RecordsMerged    prometheus.Counter
	OutcomesDecided  *prometheus.CounterVec
	FlushFailures    prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		FeedRowsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "platecheck_feed_rows_ingested_total",
			Help: "Feed rows accepted by the normalizer, by source kind",
		}, []string{"source"}),
		FeedRowsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "platecheck_feed_rows_skipped_total",
			Help: "Feed rows dropped with a warning, by source kind",
		}, []string{"source"}),
		RecordsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "platecheck_records_merged_total",
			Help: "Vehicle records created or changed by merge passes",
		}),
		OutcomesDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "platecheck_outcomes_decided_total",
			Help: "Audit outcomes reaching a terminal decision, by result",
		}, []string{"result"}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "platecheck_flush_failures_total",
			Help: "Failed flushes to the remote vehicle store",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "platecheck_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}
