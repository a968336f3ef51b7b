// Package metrics exposes Prometheus instrumentation for pipeline runs
// and the HTTP API.
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
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_pipeline_runs_total",
		Help: "Total number of pipeline runs by outcome.",
	}, []string{"result"})

	pipelineRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendacal_pipeline_run_duration_seconds",
		Help:    "Histogram of pipeline run latencies.",
		Buckets: prometheus.DefBuckets,
	})

	recordsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_records_fetched_total",
		Help: "Total number of raw event records fetched, per source.",
	}, []string{"source"})

	hiddenEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_hidden_events",
		Help: "Events removed by the count cap in the last successful run.",
	})

	publishedBuckets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_published_day_buckets",
		Help: "Day buckets produced by the last successful run.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agendacal_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveRun records the outcome and duration of one pipeline run.
func ObserveRun(result string, d time.Duration) {
	pipelineRunsTotal.WithLabelValues(result).Inc()
	pipelineRunDuration.Observe(d.Seconds())
}

// AddFetched counts raw records returned by a source fetch.
func AddFetched(source string, n int) {
	recordsFetchedTotal.WithLabelValues(source).Add(float64(n))
}

// SetPublished records the shape of the last successful run.
func SetPublished(buckets, hidden int) {
	publishedBuckets.Set(float64(buckets))
	hiddenEvents.Set(float64(hidden))
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusWriter captures the response status for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latencies for every handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
