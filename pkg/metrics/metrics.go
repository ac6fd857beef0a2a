package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification records handled by the sync pipelines, labeled by
	// ingestion mode (pull, push, batch) and outcome (created, noise,
	// duplicate, error).
	ClassificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifications_processed_total",
			Help: "Total number of classification records processed",
		},
		[]string{"mode", "outcome"},
	)

	// Work items persisted, labeled by target table.
	WorkItemsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "work_items_created_total",
			Help: "Total number of work items created",
		},
		[]string{"table"},
	)

	// Failed best-effort message enrichment lookups.
	EnrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrichment_failures_total",
			Help: "Total number of failed message enrichment lookups",
		},
	)

	// Upstream HTTP call latency in seconds.
	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Upstream service call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"service", "status"},
	)

	// Database query latency in seconds.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// Queries that exceeded the slow-query threshold.
	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Total number of queries exceeding the slow-query threshold",
		},
	)

	// HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func IncrementClassificationsProcessed(mode, outcome string) {
	ClassificationsProcessed.WithLabelValues(mode, outcome).Inc()
}

func IncrementWorkItemsCreated(table string) {
	WorkItemsCreated.WithLabelValues(table).Inc()
}

func IncrementEnrichmentFailures() {
	EnrichmentFailures.Inc()
}

func IncrementSlowQueries() {
	SlowQueries.Inc()
}

func RecordUpstreamCallDuration(service, status string, duration time.Duration) {
	UpstreamCallDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
