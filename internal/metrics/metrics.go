// Package metrics exposes Prometheus instrumentation for the poller, the
// MIDI output, the SSE stream and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll cycle outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeFetchError    = "fetch_error"
	OutcomeLocationError = "location_error"
)

var (
	pollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isswatch_poll_cycles_total",
			Help: "Poll cycles by outcome.",
		},
		[]string{"outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isswatch_fetch_duration_seconds",
			Help:    "Satellite position fetch duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	distanceKm = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isswatch_distance_km",
		Help: "Great-circle distance between the user and the ISS ground point.",
	})

	issAltitudeKm = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isswatch_iss_altitude_km",
		Help: "Last reported ISS altitude.",
	})

	midiNotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isswatch_midi_notes_total",
			Help: "MIDI notes emitted, by result.",
		},
		[]string{"result"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isswatch_streams_active",
		Help: "Connected SSE clients.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isswatch_stream_connections_total",
			Help: "SSE connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isswatch_stream_messages_total",
		Help: "SSE data messages written to clients.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isswatch_stream_bytes_total",
		Help: "Bytes written to SSE clients.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isswatch_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isswatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isswatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		pollCyclesTotal,
		fetchDurationSeconds,
		distanceKm,
		issAltitudeKm,
		midiNotesTotal,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		httpRequestsTotal,
		httpDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePoll records the outcome of one poll cycle.
func ObservePoll(outcome string) {
	pollCyclesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records how long a satellite source took to answer.
func ObserveFetch(source string, d time.Duration) {
	fetchDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

func SetDistance(km float64) { distanceKm.Set(km) }

func SetAltitude(km float64) { issAltitudeKm.Set(km) }

// ObserveNote counts a MIDI note; ok is false when the output failed.
func ObserveNote(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	midiNotesTotal.WithLabelValues(result).Inc()
}

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamConnections counts a connect or disconnect.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamErrors counts a stream failure such as "rate_limit",
// "send_error" or "dropped".
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the fixed paths served by the API. Anything else is
// reported as "other" to keep label cardinality bounded.
var knownRoutes = map[string]struct{}{
	"/":                   {},
	"/healthz":            {},
	"/readyz":             {},
	"/metrics":            {},
	"/api/v1/iss/latest":  {},
	"/api/v1/user/latest": {},
	"/api/v1/stream":      {},
	"/app.js":             {},
	"/styles.css":         {},
}

func normalizeRoute(path string) string {
	if _, ok := knownRoutes[path]; ok {
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

// Flush keeps SSE streaming working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
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
