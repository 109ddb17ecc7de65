// Package metrics exposes Prometheus instrumentation for gateway requests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelrelay_requests_total",
		Help: "Provider requests by provider, operation and outcome.",
	}, []string{"provider", "operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modelrelay_request_duration_seconds",
		Help:    "Provider request duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider", "operation"})
)

// ObserveRequest records one provider request.
func ObserveRequest(provider, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(provider, operation, status).Inc()
	requestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
