package httpapi

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	embedFailureNotFound = "not_found"
	embedFailureLoad     = "load"
	embedFailureRender   = "render"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors of the HTTP surface. Every metric is prefixed with "testimonio_".
type Metrics struct {
	EmbedRendersTotal  *prometheus.CounterVec
	EmbedFailuresTotal *prometheus.CounterVec
	EmbedDuration      prometheus.Histogram
	SubmissionsTotal   *prometheus.CounterVec
	APIRequestsTotal   *prometheus.CounterVec
	WebhookEventsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors once per process and returns them.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EmbedRendersTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "testimonio_embed_renders_total",
					Help: "Widget scripts served, by display variant",
				},
				[]string{"variant"},
			),
			EmbedFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "testimonio_embed_failures_total",
					Help: "Widget script requests that did not produce a script",
				},
				[]string{"reason"},
			),
			EmbedDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "testimonio_embed_duration_seconds",
					Help:    "Time spent loading and rendering a widget script",
					Buckets: prometheus.DefBuckets,
				},
			),
			SubmissionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "testimonio_submissions_total",
					Help: "Public form submissions, by outcome",
				},
				[]string{"outcome"},
			),
			APIRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "testimonio_api_requests_total",
					Help: "Public API requests, by route and status",
				},
				[]string{"route", "status"},
			),
			WebhookEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "testimonio_webhook_events_total",
					Help: "Payment webhook deliveries, by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return globalMetrics
}

// MetricsHandler exposes the default registry.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
