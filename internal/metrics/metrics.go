package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_upstream_requests_total",
			Help: "Upstream API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	upstreamDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstracker_upstream_duration_seconds",
			Help:    "Upstream API request duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	positionFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "isstracker_position_fallbacks_total",
			Help: "Position polls that fell back to the secondary endpoint.",
		},
	)

	positionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "isstracker_position_failures_total",
			Help: "Position polls where both primary and fallback endpoints failed.",
		},
	)

	ticksSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_ticks_skipped_total",
			Help: "Periodic task ticks skipped because the previous run was still in flight.",
		},
		[]string{"task"},
	)

	pathLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstracker_orbit_path_length",
			Help: "Number of samples currently held in the orbit path buffer.",
		},
	)

	lastPositionTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstracker_last_position_timestamp_seconds",
			Help: "Unix time of the most recent successful position sample.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_connections_total",
			Help: "Stream connection events by transport.",
		},
		[]string{"transport", "event"},
	)

	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "isstracker_streams_active",
			Help: "Currently open snapshot streams by transport.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_messages_total",
			Help: "Snapshot messages written to stream clients.",
		},
		[]string{"transport"},
	)

	streamRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_rejections_total",
			Help: "Streams refused by the concurrency limiter, by transport and exhausted budget.",
		},
		[]string{"transport", "reason"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamDurationSeconds)
	prometheus.MustRegister(positionFallbacksTotal)
	prometheus.MustRegister(positionFailuresTotal)
	prometheus.MustRegister(ticksSkippedTotal)
	prometheus.MustRegister(pathLength)
	prometheus.MustRegister(lastPositionTimestamp)
	prometheus.MustRegister(streamConnectionsTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamRejectionsTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream request outcome and its duration.
func ObserveUpstream(endpoint string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	upstreamDurationSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncPositionFallbacks counts a poll that used the secondary endpoint.
func IncPositionFallbacks() {
	positionFallbacksTotal.Inc()
}

// IncPositionFailures counts a poll where every endpoint failed.
func IncPositionFailures() {
	positionFailuresTotal.Inc()
}

// IncTickSkipped counts a skipped tick for the named task.
func IncTickSkipped(task string) {
	ticksSkippedTotal.WithLabelValues(task).Inc()
}

// SetPathLength publishes the orbit path buffer length.
func SetPathLength(n int) {
	pathLength.Set(float64(n))
}

// SetLastPosition publishes the arrival time of the newest position sample.
func SetLastPosition(t time.Time) {
	lastPositionTimestamp.Set(float64(t.Unix()))
}

// IncStreamConnections counts a connect or disconnect event.
func IncStreamConnections(transport, event string) {
	streamConnectionsTotal.WithLabelValues(transport, event).Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive(transport string) {
	streamsActive.WithLabelValues(transport).Inc()
}

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive(transport string) {
	streamsActive.WithLabelValues(transport).Dec()
}

// IncStreamMessages counts one message written to a stream client.
func IncStreamMessages(transport string) {
	streamMessagesTotal.WithLabelValues(transport).Inc()
}

// IncStreamRejected counts a stream refused by the limiter.
func IncStreamRejected(transport, reason string) {
	streamRejectionsTotal.WithLabelValues(transport, reason).Inc()
}

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the paths served by the API; anything else is reported as
// "other" to keep label cardinality bounded.
var knownRoutes = map[string]bool{
	"/":                       true,
	"/app.js":                 true,
	"/styles.css":             true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/snapshot":        true,
	"/api/v1/roster":          true,
	"/api/v1/stats":           true,
	"/api/v1/path/visibility": true,
	"/api/v1/stream":          true,
	"/api/v1/ws":              true,
}

// normalizeRoute maps a request path to a bounded metric label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// stream handlers need for flushing and deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush forwards to the underlying writer so SSE works through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack forwards to the underlying writer for WebSocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
