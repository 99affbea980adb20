package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isstracker/internal/health"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracker"
)

const maxRequestBody = 1 << 10

// State is the tracker surface the API reads and controls.
type State interface {
	Snapshot() tracker.Snapshot
	SetPathVisible(visible bool)
	PathVisible() bool
	Ready() bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. static holds the dashboard
// page served at "/"; it may be nil.
func NewServer(addr string, logger *slog.Logger, state State, streams *stream.Handler, static fs.FS) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(state.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/snapshot", snapshotHandler(state))
	mux.HandleFunc("GET /api/v1/roster", rosterHandler(state))
	mux.HandleFunc("GET /api/v1/stats", statsHandler(state))
	mux.HandleFunc("GET /api/v1/path/visibility", getVisibilityHandler(state))
	mux.HandleFunc("PUT /api/v1/path/visibility", putVisibilityHandler(logger, state))

	if streams != nil {
		mux.HandleFunc("GET /api/v1/stream", streams.HandleSSE)
		mux.HandleFunc("GET /api/v1/ws", streams.HandleWebSocket)
	}
	if static != nil {
		mux.Handle("GET /", http.FileServerFS(static))
	}

	// Build middleware chain: metrics -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
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

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func snapshotHandler(state State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, state.Snapshot())
	}
}

func rosterHandler(state State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, state.Snapshot().Roster)
	}
}

func statsHandler(state State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, state.Snapshot().Stats)
	}
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

type visibilityResponse struct {
	Visible bool `json:"visible"`
}

func getVisibilityHandler(state State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, visibilityResponse{Visible: state.PathVisible()})
	}
}

// putVisibilityHandler toggles the orbit path.
// PUT /api/v1/path/visibility {"visible": false}
func putVisibilityHandler(logger *slog.Logger, state State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req visibilityRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil || req.Visible == nil {
			logger.Debug("invalid visibility request", "component", "api", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": `body must be {"visible": true|false}`,
			})
			return
		}

		state.SetPathVisible(*req.Visible)
		writeJSON(w, http.StatusOK, visibilityResponse{Visible: state.PathVisible()})
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

// Unwrap exposes the wrapped writer to http.ResponseController, which the
// stream handlers use to flush, hijack and set deadlines.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Flush keeps the http.Flusher assertion in the SSE handler working.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack forwards to the wrapped writer for WebSocket upgrades.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
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
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
