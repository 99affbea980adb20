package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/isstracker/internal/metrics"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
	wsMaxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// controlMessage is the only message a WebSocket client may send.
//
//	{"type":"path_visibility","visible":false}
type controlMessage struct {
	Type    string `json:"type"`
	Visible *bool  `json:"visible"`
}

// HandleWebSocket serves the snapshot stream over a WebSocket and accepts
// path visibility toggles from the client.
// GET /api/v1/ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.admit(w, r, transportWS)
	if !ok {
		return
	}
	defer h.limiter.release(ip, transportWS)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		metrics.IncStreamErrors("upgrade_error")
		h.logger.Warn("websocket upgrade failed", "component", "stream", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	id, updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	metrics.IncStreamConnections(transportWS, "connect")
	metrics.IncStreamsActive(transportWS)
	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"transport", transportWS,
		"conn_id", id,
		"remote_ip", ip,
		"subscribers", h.hub.Len(),
		"open_on_transport", h.limiter.open(transportWS),
	)

	var messagesSent int64
	defer func() {
		metrics.IncStreamConnections(transportWS, "disconnect")
		metrics.DecStreamsActive(transportWS)
		h.logger.Info("stream disconnected",
			"component", "stream",
			"transport", transportWS,
			"conn_id", id,
			"remote_ip", ip,
			"messages_sent", messagesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	closed := make(chan struct{})
	go h.readControl(conn, id, closed)

	send := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			return err
		}
		messagesSent++
		metrics.IncStreamMessages(transportWS)
		return nil
	}

	if err := send(snapshotMessage(h.hub.Current())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (initial)", "component", "stream", "conn_id", id, "error", err)
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return

		case <-closed:
			return

		case snap := <-updates:
			if err := send(snapshotMessage(snap)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "component", "stream", "conn_id", id, "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream ping error", "component", "stream", "conn_id", id, "error", err)
				return
			}
		}
	}
}

// readControl consumes client messages until the connection closes, then
// closes done.
func (h *Handler) readControl(conn *websocket.Conn, id string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxReadBytes)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.logger.Debug("websocket read ended", "component", "stream", "conn_id", id, "error", err)
			}
			return
		}

		switch {
		case msg.Type == "path_visibility" && msg.Visible != nil:
			if h.paths != nil {
				h.paths.SetPathVisible(*msg.Visible)
			}
		default:
			metrics.IncStreamErrors("bad_control")
			h.logger.Debug("ignoring websocket message", "component", "stream", "conn_id", id, "type", msg.Type)
		}
	}
}
