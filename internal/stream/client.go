package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/tracker"
)

const writeTimeout = 30 * time.Second

// message is the envelope for every streamed snapshot. Snapshot fields are
// inlined next to the type tag.
type message struct {
	Type string `json:"type"`
	tracker.Snapshot
}

func snapshotMessage(s tracker.Snapshot) message {
	return message{Type: "snapshot", Snapshot: s}
}

// sseClient manages a single SSE connection's write operations.
type sseClient struct {
	id      string
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
// SSE format: "data: {json}\n\n"
func (c *sseClient) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	c.extendDeadline()

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages(transportSSE)

	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
// SSE comment format: ":\n\n"
func (c *sseClient) sendKeepalive() error {
	c.extendDeadline()

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)

	return nil
}

// extendDeadline pushes the write deadline forward before each write so
// long-lived connections are not cut by the server's WriteTimeout.
func (c *sseClient) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "conn_id", c.id, "error", err)
	}
}
