// Package metrics exposes the Prometheus collectors for the application.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics for API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// Upstream Octopus API metrics
var (
	// OctopusRequestsTotal counts outbound calls by host and status code
	OctopusRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octopus_api_requests_total",
			Help: "Total number of requests sent to the Octopus API by status",
		},
		[]string{"status"},
	)

	// OctopusRequestDuration includes time spent waiting on the rate limiter
	OctopusRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "octopus_api_request_duration_seconds",
			Help:    "Duration of requests to the Octopus API including rate limiter wait",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// ResponseCacheLookups counts on-disk HTTP response cache lookups
	ResponseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octopus_response_cache_lookups_total",
			Help: "On-disk HTTP response cache lookups by result",
		},
		[]string{"result"},
	)
)

// Rate cache and insight metrics
var (
	// RateCacheLookups counts stored rate lookups by kind and result
	RateCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_cache_lookups_total",
			Help: "Stored rate lookups by rate kind and result (hit when stored rates cover the window)",
		},
		[]string{"kind", "result"},
	)

	// RatesFetched counts rate records fetched from the API and stored
	RatesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rates_fetched_total",
			Help: "Rate records fetched from the Octopus API by rate kind",
		},
		[]string{"kind"},
	)

	// InsightsGenerated counts insight summaries by presentation style
	InsightsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_generated_total",
			Help: "Insight summaries generated by presentation style and whether the cost was billed or estimated",
		},
		[]string{"style", "true_cost"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordOctopusRequest records one upstream call. status is 0 on transport errors.
func RecordOctopusRequest(status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	OctopusRequestsTotal.WithLabelValues(label).Inc()
	OctopusRequestDuration.Observe(duration.Seconds())
}

// RecordResponseCacheLookup records a hit or miss of the HTTP response cache
func RecordResponseCacheLookup(hit bool) {
	ResponseCacheLookups.WithLabelValues(result(hit)).Inc()
}

// RecordRateCacheLookup records whether stored rates covered the requested window
func RecordRateCacheLookup(kind string, hit bool) {
	RateCacheLookups.WithLabelValues(kind, result(hit)).Inc()
}

// RecordRatesFetched adds n fetched rate records
func RecordRatesFetched(kind string, n int) {
	RatesFetched.WithLabelValues(kind).Add(float64(n))
}

// RecordInsights records one generated summary
func RecordInsights(style string, trueCost bool) {
	InsightsGenerated.WithLabelValues(style, strconv.FormatBool(trueCost)).Inc()
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
