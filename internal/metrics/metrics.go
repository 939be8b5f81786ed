// Package metrics defines Prometheus metrics for spacestore.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spacestore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacestore_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacestore_writes_total",
			Help: "Successful feature writes by disposition",
		},
		[]string{"disposition"},
	)

	WriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacestore_write_errors_total",
			Help: "Failed feature writes by error code",
		},
		[]string{"code"},
	)

	WriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spacestore_write_duration_seconds",
			Help:    "Feature write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StaleHeadRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spacestore_stale_head_retries_total",
			Help: "Writes retried after losing a race on the feature head",
		},
	)

	ActivityQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacestore_activity_queue_depth",
			Help: "Current activity log queue depth",
		},
	)

	ActivityEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacestore_activity_entries_total",
			Help: "Activity log entries recorded by action",
		},
		[]string{"action"},
	)

	ActivityAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacestore_activity_anomalies_total",
			Help: "Activity log entries recorded without a diff because of a history defect",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		WritesTotal, WriteErrorsTotal, WriteDuration, StaleHeadRetries,
		ActivityQueueDepth, ActivityEntriesTotal, ActivityAnomaliesTotal,
	)
}
