package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trackvote/backend/internal/broker"
	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/metrics"
)

// DefaultHeartbeat is the keep-alive interval for live streams.
const DefaultHeartbeat = 30 * time.Second

// SSEHandler serves Server-Sent Events streams for real-time vote updates.
type SSEHandler struct {
	broker    *broker.Broker
	clock     clockwork.Clock
	heartbeat time.Duration
	metrics   *metrics.StreamMetrics
}

// NewSSEHandler creates an SSEHandler backed by the given broker.
func NewSSEHandler(b *broker.Broker, clock clockwork.Clock, heartbeat time.Duration, m *metrics.StreamMetrics) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &SSEHandler{broker: b, clock: clock, heartbeat: heartbeat, metrics: m}
}

// Stream opens an SSE connection. It sends an initial "connected" event, then
// a "vote" or "reset" event for every ledger change. A heartbeat comment keeps
// the connection alive through proxies. If the client falls too far behind the
// stream ends and the client is expected to reconnect and refetch.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)
	defer h.metrics.Connected("sse")()

	// Send initial connected event
	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	heartbeat := h.clock.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEventName(ev), data)
			flusher.Flush()
		case <-heartbeat.Chan():
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sseEventName(ev ledger.Event) string {
	if ev.Kind == ledger.EventAllReset {
		return "reset"
	}
	return "vote"
}
