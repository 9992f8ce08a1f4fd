// Package metrics exposes Prometheus collectors for the lead pipeline.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

var (
	leadsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_received_total",
			Help: "Total number of leads accepted at intake, labeled by brand.",
		},
		[]string{"brand"},
	)

	leadsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_rejected_total",
			Help: "Total number of submissions rejected at intake, labeled by reason.",
		},
		[]string{"reason"},
	)

	dispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_dispatch_attempts_total",
			Help: "Total number of delivery attempts, labeled by brand and outcome.",
		},
		[]string{"brand", "outcome"},
	)

	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_dispatch_duration_seconds",
			Help:    "Histogram of tracker call latencies, labeled by brand.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"brand"},
	)

	leadStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_status_transitions_total",
			Help: "Total number of lead status changes, labeled by target status.",
		},
		[]string{"status"},
	)

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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// LeadReceived counts an accepted lead.
func LeadReceived(brandID string) {
	leadsReceivedTotal.WithLabelValues(brandID).Inc()
}

// LeadRejected counts a rejected submission (validation, duplicate, unknown brand).
func LeadRejected(reason string) {
	leadsRejectedTotal.WithLabelValues(reason).Inc()
}

// DispatchAttempt records one delivery try and its latency.
func DispatchAttempt(brandID, outcome string, duration time.Duration) {
	dispatchAttemptsTotal.WithLabelValues(brandID, outcome).Inc()
	dispatchDurationSeconds.WithLabelValues(brandID).Observe(duration.Seconds())
}

// StatusTransition counts a lead moving into status.
func StatusTransition(status string) {
	leadStatusTransitionsTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts and latencies per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
