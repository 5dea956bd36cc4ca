// Package api wires the HTTP surface: probes, metrics, the latest-record
// JSON endpoints, the SSE stream and the embedded web page.
package api

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isswatch/internal/auth"
	"github.com/star/isswatch/internal/health"
	"github.com/star/isswatch/internal/httputil"
	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/metrics"
	"github.com/star/isswatch/internal/stream"
)

// Deps are the data sources behind the routes. Stream and Static are
// optional.
type Deps struct {
	ISS        *iss.Store
	User       *location.Store
	Stream     *stream.Hub
	Static     fs.FS
	Ready      func() bool
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	logger = logger.With("component", "api")

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = newMux(logger, deps)
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func newMux(logger *slog.Logger, deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/iss/latest", issLatestHandler(deps.ISS))
	mux.HandleFunc("GET /api/v1/user/latest", userLatestHandler(deps.User))

	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream", deps.Stream.HandleStream)
	}
	if deps.Static != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Static))
	}
	return mux
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

type issLatestResponse struct {
	iss.Position
	AgeSeconds float64 `json:"age_seconds"`
}

func issLatestHandler(store *iss.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos := store.Get()
		if pos == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no ISS position yet"})
			return
		}
		writeJSON(w, http.StatusOK, issLatestResponse{Position: *pos, AgeSeconds: store.AgeSeconds()})
	}
}

func userLatestHandler(store *location.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos := store.Get()
		if pos == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no user location yet"})
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
