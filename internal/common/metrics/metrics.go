// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_status_transitions_total",
			Help: "Total number of application status transitions applied",
		},
		[]string{"source", "to_status"},
	)

	StatusTransitionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_status_transitions_failed_total",
			Help: "Total number of rejected or failed status transitions",
		},
		[]string{"error_code"},
	)

	DashboardComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_dashboard_computations_total",
			Help: "Total number of dashboard aggregations",
		},
		[]string{"result"},
	)

	ListQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "admin_list_query_duration_seconds",
			Help: "Duration of admin list queries in seconds",
		},
		[]string{"source"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "method", "status"},
	)

	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Total number of application submissions",
		},
		[]string{"variant", "result"},
	)
)
