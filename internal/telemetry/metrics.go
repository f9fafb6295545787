package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the teacher's controller/pkg/metrics package-level
// registration pattern: one package-scoped collector per concern,
// registered once via promauto, exercised by helper functions instead of
// exposing prometheus types to callers.
var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imagedesc_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagedesc_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"method", "route", "status"})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagedesc_submissions_total",
		Help: "Total description submissions recorded, by trial kind.",
	}, []string{"kind"})

	rewardsSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagedesc_rewards_selected_total",
		Help: "Total reward-selection draws that resulted in a winner.",
	})

	auditWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagedesc_audit_write_failures_total",
		Help: "Total best-effort audit/metric row writes that failed.",
	})
)

// ObserveRequest records one completed HTTP request's duration and outcome.
func ObserveRequest(method, route, status string, durationSeconds float64) {
	requestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
	requestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordSubmission increments the submissions counter for the given trial
// kind ("survey" or "payable").
func RecordSubmission(kind string) {
	submissionsTotal.WithLabelValues(kind).Inc()
}

// RecordRewardSelected increments the reward-winner counter.
func RecordRewardSelected() {
	rewardsSelectedTotal.Inc()
}

// RecordAuditWriteFailure increments the audit/metric write-failure counter.
func RecordAuditWriteFailure() {
	auditWriteFailuresTotal.Inc()
}
