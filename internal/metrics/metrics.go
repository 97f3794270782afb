// Package metrics exposes Prometheus collectors for the scout service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes recorded by the receiver.
const (
	CaptureSaved     = "saved"
	CaptureDuplicate = "duplicate"
	CaptureInvalid   = "invalid"
	CaptureError     = "error"
)

// Driver outcomes recorded per (page, company) combination.
const (
	DriverOpened            = "opened"
	DriverSkippedIndexed    = "skipped_indexed"
	DriverSkippedPagination = "skipped_pagination"
	DriverFailed            = "failed"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	capturesTotal              *prometheus.CounterVec
	driverActionsTotal         *prometheus.CounterVec
	indexEntries               *prometheus.GaugeVec
	driverPauseSeconds         prometheus.Histogram

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)

		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_captures_total",
				Help: "Captured pages received, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		driverActionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_driver_actions_total",
				Help: "Search page combinations visited by the driver, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		indexEntries = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scout_index_entries",
				Help: "Number of entries held by each index.",
			},
			[]string{"index"},
		)

		driverPauseSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scout_driver_pause_seconds",
				Help:    "Time the driver spent waiting between tab opens.",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCapture counts a receiver outcome.
func ObserveCapture(outcome string) {
	Init()
	capturesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDriverAction counts a driver outcome.
func ObserveDriverAction(outcome string) {
	Init()
	driverActionsTotal.WithLabelValues(outcome).Inc()
}

// SetIndexEntries records the current size of an index.
func SetIndexEntries(index string, n int) {
	Init()
	indexEntries.WithLabelValues(index).Set(float64(n))
}

// ObservePause records how long the driver waited before a tab open.
func ObservePause(duration time.Duration) {
	Init()
	driverPauseSeconds.Observe(duration.Seconds())
}
