// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Records written by the consumer, labeled by target and outcome.",
		},
		[]string{"target", "outcome"},
	)

	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_requests_total",
			Help: "Upstream page requests, labeled by target and status class.",
		},
		[]string{"target", "status_class"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Upstream request latency, labeled by target.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"target"},
	)

	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_hits_total",
			Help: "Artifacts served from a fresh cache entry, labeled by target.",
		},
		[]string{"target"},
	)

	softErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_soft_errors_total",
			Help: "Error pages or non-2xx responses persisted for a later run, labeled by target.",
		},
		[]string{"target"},
	)

	gateBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_gate_blocks_total",
			Help: "Times the upstream blocked requests and the gate closed.",
		},
	)

	gateRecoveryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_gate_recovery_attempts_total",
			Help: "Requests issued by the recoverer while the gate was closed.",
		},
	)

	gateBlocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_gate_blocked",
			Help: "1 while the rate-limit gate is closed.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_workers",
			Help: "Number of fetch workers currently running.",
		},
	)

	consumerPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_consumer_position",
			Help: "Last ID written by the in-order consumer, labeled by target.",
		},
		[]string{"target"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delay_seconds",
			Help:    "Histogram of request pacing waits.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the status server, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of status server latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass groups an HTTP status code (2xx, 3xx, ...).
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// ObserveRecord counts one consumed record.
func ObserveRecord(target string, available bool) {
	outcome := "not_available"
	if available {
		outcome = "available"
	}
	recordsTotal.WithLabelValues(target, outcome).Inc()
}

// ObserveFetch records one upstream request.
func ObserveFetch(target string, code int, duration time.Duration) {
	fetchRequestsTotal.WithLabelValues(target, StatusClass(code)).Inc()
	fetchDurationSeconds.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveCacheHit counts an artifact served without network I/O.
func ObserveCacheHit(target string) {
	cacheHitsTotal.WithLabelValues(target).Inc()
}

// ObserveSoftError counts an error page that was persisted anyway.
func ObserveSoftError(target string) {
	softErrorsTotal.WithLabelValues(target).Inc()
}

// ObserveGateBlocked marks the gate closed.
func ObserveGateBlocked() {
	gateBlocksTotal.Inc()
	gateBlocked.Set(1)
}

// ObserveGateOpened marks the gate open again.
func ObserveGateOpened() {
	gateBlocked.Set(0)
}

// ObserveRecoveryAttempt counts one retry issued by the recoverer.
func ObserveRecoveryAttempt() {
	gateRecoveryAttemptsTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// SetConsumerPosition records the last ID the consumer wrote.
func SetConsumerPosition(target string, id int) {
	consumerPosition.WithLabelValues(target).Set(float64(id))
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the status server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
