package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are the ambient /metrics surface supplementing §4.G's route
// table: request counts and latencies by route, plus a counter of
// post-push tasks that reached the webhook-fire step.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	webhookFired    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riley_cms_http_requests_total",
			Help: "Total HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riley_cms_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		webhookFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "riley_cms_webhook_deliveries_fired_total",
			Help: "Total post-push triggers that reached the webhook-fire step.",
		}),
	}
}

// IncWebhookFired records that a post-push task reached the
// webhook-fire step for a successful receive-pack.
func (m *metrics) IncWebhookFired() { m.webhookFired.Inc() }

// IncWebhookFired forwards to the server's metrics; the Orchestrator
// calls this through a closure passed as onWebhookFired so that package
// doesn't need to import prometheus itself.
func (s *Server) IncWebhookFired() { s.metrics.IncWebhookFired() }

// instrument wraps next with request-count and latency observation,
// keyed by chi's matched route pattern so cardinality stays bounded
// even with slug-shaped path params.
func (m *metrics) instrument(routePattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.requestsTotal.WithLabelValues(routePattern, strconv.Itoa(sw.status)).Inc()
			m.requestDuration.WithLabelValues(routePattern).Observe(time.Since(start).Seconds())
		})
	}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
