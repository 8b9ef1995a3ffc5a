// Package metrics holds the process's Prometheus instruments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// IngestTotal counts webhook deliveries by outcome
	// (stored, deduplicated, failed).
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chainstage_ingest_total", Help: "Webhook deliveries"},
		[]string{"outcome"},
	)
	// JobRunsTotal counts job executions by job name and status.
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chainstage_job_runs_total", Help: "Job executions"},
		[]string{"job", "status"},
	)
	// JobDuration tracks job execution latency.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "chainstage_job_duration_seconds", Help: "Job latency", Buckets: prometheus.DefBuckets},
		[]string{"job"},
	)
	// RowsStaged counts rows written to staging tables by stream.
	RowsStaged = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chainstage_rows_staged_total", Help: "Staged rows"},
		[]string{"stream"},
	)
	// HTTPRequestsTotal counts requests by method, route and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests"},
		[]string{"method", "route", "status"},
	)
	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		IngestTotal,
		JobRunsTotal,
		JobDuration,
		RowsStaged,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
