package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Processing metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_requests_total",
			Help: "Total number of processing requests",
		},
		[]string{"type", "status"}, // type: remove, analyze, websocket
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_processing_duration_seconds",
			Help:    "Background removal duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
		[]string{"type"},
	)

	backendWins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_backend_wins_total",
			Help: "Results produced per backend and strategy",
		},
		[]string{"backend", "strategy"},
	)

	degradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutout_degraded_results_total",
			Help: "Results that fell back to the last resort or the original image",
		},
	)

	foregroundRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_foreground_ratio",
			Help:    "Share of opaque pixels in result masks",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutout_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)

func recordResult(kind string, res *pipeline.Result, d time.Duration) {
	requestsTotal.WithLabelValues(kind, "success").Inc()
	processingDuration.WithLabelValues(kind).Observe(d.Seconds())
	backendWins.WithLabelValues(res.Backend, res.Strategy).Inc()
	if res.Degraded {
		degradedTotal.Inc()
	}
	if res.Mask != nil {
		foregroundRatio.Observe(res.ForegroundRatio())
	}
}
