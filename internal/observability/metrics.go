package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	fanOutUpsertsTotal    *prometheus.CounterVec
	attemptTransitionsTot *prometheus.CounterVec
	gradingLatencySeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		fanOutUpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_fan_out_upserts_total",
			Help: "Student assignment rows ensured during provisioning fan-out.",
		}, []string{"trigger"})

		attemptTransitionsTot = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attempt_transitions_total",
			Help: "State machine transitions applied to student assignments.",
		}, []string{"operation"})

		gradingLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Time spent evaluating a full submission.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			fanOutUpsertsTotal,
			attemptTransitionsTot,
			gradingLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// FanOutUpserts exposes the counter for provisioning upserts, labeled by the
// event trigger.
func FanOutUpserts() *prometheus.CounterVec {
	RegisterMetrics()
	return fanOutUpsertsTotal
}

// AttemptTransitions exposes the counter for attempt state transitions.
func AttemptTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptTransitionsTot
}

// GradingLatency exposes the histogram for submission grading time.
func GradingLatency() prometheus.Histogram {
	RegisterMetrics()
	return gradingLatencySeconds
}
