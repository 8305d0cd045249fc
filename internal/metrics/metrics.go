// Package metrics holds the Prometheus instruments for the HTTP surface and
// the media pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	tasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_processed_total",
			Help: "Pipeline queue tasks processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Tasks currently sitting in the pipeline queue",
		},
	)

	renditionsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_renditions_generated_total",
			Help: "Renditions produced by the derivation engine",
		},
		[]string{"collection", "rendition"},
	)

	ownersPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_owners_published_total",
			Help: "Owners transitioned to published",
		},
		[]string{"owner_kind"},
	)

	originalsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_originals_pruned_total",
			Help: "Original files pruned after rendition completion",
		},
	)
)

func TaskProcessed(kind, outcome string) {
	tasksProcessedTotal.WithLabelValues(kind, outcome).Inc()
}

func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

func RenditionGenerated(collection, rendition string) {
	renditionsGeneratedTotal.WithLabelValues(collection, rendition).Inc()
}

func OwnerPublished(ownerKind string) {
	ownersPublishedTotal.WithLabelValues(ownerKind).Inc()
}

func OriginalPruned() {
	originalsPrunedTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records Prometheus metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
