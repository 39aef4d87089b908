package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal counts analysis runs by outcome: ok, rejected or failed.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vatdesk_analyses_total",
			Help: "Total number of VAT analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vatdesk_analysis_duration_seconds",
			Help:    "Time spent analysing one export",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RowsTotal counts data rows by fate: classified, unclassified or skipped.
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vatdesk_rows_total",
			Help: "Data rows seen across all analyses",
		},
		[]string{"fate"},
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vatdesk_anomalies_total",
			Help: "Anomalies raised by type",
		},
		[]string{"type"},
	)

	SanityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vatdesk_sanity_failures_total",
			Help: "Reconciliation checks that exceeded tolerance",
		},
		[]string{"scope"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vatdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vatdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
