// Package stream pushes live tracker snapshots to browsers. Clients connect
// via GET /api/v1/stream (Server-Sent Events) or GET /api/v1/ws (WebSocket)
// and receive a snapshot after every tracker state change.
//
// SSE message format:
//
//	data: {"type":"snapshot","position":{...},"path":[...],"roster":{...},...}\n\n
//
// The first message on every connection is the current snapshot, so a
// reconnecting client never waits for the next poll to draw the map.
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without traffic.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/star/isstracker/internal/httputil"
	"github.com/star/isstracker/internal/metrics"
)

// Defaults applied by NewHandler to zero Config fields.
const (
	DefaultMaxConcurrentPerIP = 10
	DefaultKeepaliveInterval  = 30 * time.Second
)

const (
	transportSSE = "sse"
	transportWS  = "ws"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive interval (default: 30s).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	TrustProxy         bool          // Honour X-Forwarded-For when limiting.
}

// PathController toggles orbit path visibility on behalf of WebSocket clients.
type PathController interface {
	SetPathVisible(visible bool)
}

// Handler manages SSE and WebSocket streaming connections.
type Handler struct {
	hub     *Hub
	paths   PathController
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler. paths may be nil, in which case
// WebSocket toggle messages are ignored.
func NewHandler(hub *Hub, paths PathController, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = DefaultMaxConcurrentPerIP
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = DefaultKeepaliveInterval
	}
	return &Handler{
		hub:     hub,
		paths:   paths,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// admit applies the stream budgets. On rejection it writes the 429 response
// and returns false; otherwise the caller must release(ip, transport).
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, transport string) (string, bool) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	reason, ok := h.limiter.acquire(ip, transport)
	if !ok {
		metrics.IncStreamRejected(transport, reason)
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"transport", transport,
			"reason", reason,
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		writeJSONError(w, http.StatusTooManyRequests, "too many concurrent streams", "30")
		return "", false
	}
	return ip, true
}

// HandleSSE serves the snapshot event stream.
// GET /api/v1/stream
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.admit(w, r, transportSSE)
	if !ok {
		return
	}
	defer h.limiter.release(ip, transportSSE)

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	id, updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	metrics.IncStreamConnections(transportSSE, "connect")
	metrics.IncStreamsActive(transportSSE)

	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"transport", transportSSE,
		"conn_id", id,
		"remote_ip", ip,
		"subscribers", h.hub.Len(),
		"open_on_transport", h.limiter.open(transportSSE),
		"user_agent", r.Header.Get("User-Agent"),
	)

	c := &sseClient{
		id:      id,
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  h.logger,
	}

	defer func() {
		metrics.IncStreamConnections(transportSSE, "disconnect")
		metrics.DecStreamsActive(transportSSE)
		h.logger.Info("stream disconnected",
			"component", "stream",
			"transport", transportSSE,
			"conn_id", id,
			"remote_ip", ip,
			"messages_sent", c.messagesSent,
			"bytes_sent", c.bytesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection; each
	// write extends its own deadline.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "conn_id", id, "error", err)
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	if err := c.sendJSON(snapshotMessage(h.hub.Current())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (initial)", "component", "stream", "conn_id", id, "error", err)
		return
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-updates:
			if err := c.sendJSON(snapshotMessage(snap)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "component", "stream", "conn_id", id, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "conn_id", id, "error", err)
				return
			}
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg, retryAfter string) {
	w.Header().Set("Content-Type", "application/json")
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
