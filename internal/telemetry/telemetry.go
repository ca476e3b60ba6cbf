// Package telemetry exposes prometheus metrics for the orchestration core.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal counts session cache hits per namespace.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suiamor_cache_hits_total",
			Help: "Total number of session cache hits.",
		},
		[]string{"namespace"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suiamor_cache_misses_total",
			Help: "Total number of session cache misses.",
		},
		[]string{"namespace"},
	)

	// CacheErrorsTotal counts backend failures that degraded to a miss.
	CacheErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "suiamor_cache_errors_total",
			Help: "Total number of session cache backend errors (degraded to miss).",
		},
	)

	// InflightJoinsTotal counts requests that joined an in-progress computation.
	InflightJoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suiamor_inflight_joins_total",
			Help: "Total number of requests deduplicated onto an in-flight ticket.",
		},
		[]string{"namespace"},
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suiamor_provider_calls_total",
			Help: "Total number of model provider invocations.",
		},
		[]string{"op"},
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suiamor_provider_retries_total",
			Help: "Total number of provider retries after transient failures.",
		},
		[]string{"op"},
	)

	// RequestDurationSeconds tracks end-to-end orchestration latency.
	RequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suiamor_request_duration_seconds",
			Help:    "End-to-end orchestration latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"namespace", "outcome"},
	)
)

// Register is called once at startup to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheErrorsTotal,
		InflightJoinsTotal,
		ProviderCallsTotal,
		ProviderRetriesTotal,
		RequestDurationSeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}
