package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/trackvote/backend/internal/broker"
	"github.com/trackvote/backend/internal/logging"
	"github.com/trackvote/backend/internal/metrics"
)

const wsWriteWait = 5 * time.Second

type wsHello struct {
	Type string `json:"type"`
}

// WebSocketHandler streams the same events as SSEHandler over a WebSocket.
type WebSocketHandler struct {
	broker    *broker.Broker
	clock     clockwork.Clock
	heartbeat time.Duration
	metrics   *metrics.StreamMetrics
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocketHandler that accepts browser origins
// from allowedOrigins and the server's own host.
func NewWebSocketHandler(b *broker.Broker, clock clockwork.Clock, heartbeat time.Duration, allowedOrigins []string, m *metrics.StreamMetrics) *WebSocketHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &WebSocketHandler{
		broker:    b,
		clock:     clock,
		heartbeat: heartbeat,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(allowedOrigins),
		},
	}
}

// Stream upgrades the connection and pushes one JSON message per ledger
// change. Client messages are ignored; reading only detects disconnects.
func (h *WebSocketHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return
	}
	defer conn.Close()

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)
	defer h.metrics.Connected("ws")()

	conn.SetReadLimit(512)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, wsHello{Type: "connected"}); err != nil {
		return
	}

	heartbeat := h.clock.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			return
		case ev, ok := <-sub.C():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				return
			}
			if err := h.write(conn, ev); err != nil {
				return
			}
		case <-heartbeat.Chan():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// newCheckOrigin allows requests without an Origin header (non-browser
// clients), same-host origins and the configured CORS origins.
func newCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] {
			return true
		}

		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}

		fields := append(logging.RequestFields(r.Context()), slog.String("origin", origin))
		slog.WarnContext(r.Context(), "WebSocket origin rejected", fields...)
		return false
	}
}
