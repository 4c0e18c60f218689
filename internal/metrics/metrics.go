package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petagenda",
			Name:      "backend_requests_total",
			Help:      "Backend REST requests by method, resource and status code.",
		},
		[]string{"method", "resource", "code"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "petagenda",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend REST request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	healthRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petagenda",
			Name:      "http_requests_total",
			Help:      "Operational HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(backendRequests, backendLatency, healthRequests)
	})
}

// ObserveBackend records one backend call. code is 0 when no response arrived.
func ObserveBackend(method, resource string, code int, elapsed time.Duration) {
	label := "transport_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	backendRequests.WithLabelValues(method, resource, label).Inc()
	backendLatency.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// IncHTTP increments the counter for an operational endpoint label.
func IncHTTP(endpoint string) {
	healthRequests.WithLabelValues(endpoint).Inc()
}
