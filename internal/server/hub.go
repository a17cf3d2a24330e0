package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/internal/telemetry"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// Frame is the JSON message pushed to every websocket client.
type Frame struct {
	Type       string            `json:"type"` // telemetry, status, decode_error, transport_error, sink_error, series_reset
	Seq        uint64            `json:"seq,omitempty"`
	Record     *telemetry.Record `json:"record,omitempty"`
	ReceivedAt *time.Time        `json:"receivedAt,omitempty"`
	Raw        string            `json:"raw,omitempty"`
	Message    string            `json:"message,omitempty"`
	Status     *session.Status   `json:"status,omitempty"`
	Stamp      int64             `json:"stamp"` // Unix ms
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub tracks websocket clients. A client that cannot keep up misses
// messages; broadcast never blocks.
type hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func newHub(log *logger.Logger) *hub {
	return &hub{
		log:     log,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serve upgrades the request and sends hello as the first message.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, hello Frame) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}
	if data, err := json.Marshal(hello); err == nil {
		client.send <- data
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", logger.String("remote", r.RemoteAddr), logger.Int("clients", n))

	// Writer
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader keeps the connection alive and notices close.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, client)
			n := len(h.clients)
			close(client.send)
			h.mu.Unlock()
			h.log.Info("client disconnected", logger.String("remote", r.RemoteAddr), logger.Int("clients", n))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *hub) broadcast(frame Frame) {
	if frame.Stamp == 0 {
		frame.Stamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Warn("frame marshal failed", logger.String("type", frame.Type), logger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.conn.Close()
	}
}
