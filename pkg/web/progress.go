// Package web hosts a small WebSocket endpoint that streams live decode
// progress: one JSON frame per ProgressEvent passed to Broadcast, pushed
// as a long decode job runs. Ported and trimmed from the teacher's hub pattern
// (register/unregister/broadcast channels, one writer goroutine per
// client) down to the single event type this package needs.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/convcode/pkg/logger"
	"github.com/gorilla/websocket"
)

// ProgressEvent is one JSON frame pushed to every connected client.
type ProgressEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	Column           uint      `json:"column"`
	TotalColumns     uint      `json:"total_columns"`
	BestState        uint32    `json:"best_state"`
	CumulativeMetric uint32    `json:"cumulative_metric"`
}

func (e *ProgressEvent) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// client is one connected WebSocket client.
type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// ProgressHub manages client connections and broadcasts ProgressEvents to
// all of them as a decode job makes progress.
type ProgressHub struct {
	clients    map[*client]bool
	broadcast  chan ProgressEvent
	register   chan *client
	unregister chan *client
	log        *logger.Logger
	mu         sync.RWMutex
}

// NewProgressHub creates a hub that logs via log (nil discards logging).
func NewProgressHub(log *logger.Logger) *ProgressHub {
	if log == nil {
		log = logger.New(logger.Config{Level: "error"})
	}
	return &ProgressHub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan ProgressEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log,
	}
}

// Run drives the hub's event loop until ctx is canceled.
func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug("decode-progress client registered", logger.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
			h.log.Debug("decode-progress client unregistered", logger.String("client_id", c.id))

		case event := <-h.broadcast:
			data, err := event.marshal()
			if err != nil {
				h.log.Error("failed to marshal progress event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("client message buffer full, skipping", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast pushes event to every connected client, dropping it (with a
// log warning) if the hub's internal buffer is full.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("progress broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (h *ProgressHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}
