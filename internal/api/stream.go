package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/gridworks/internal/engine"
)

const maxStreamConns = 8

// Hub fans tick summaries out to websocket subscribers. Slow subscribers
// miss summaries rather than stall the engine.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan []byte)}
}

// Publish sends sum to every subscriber without blocking.
func (h *Hub) Publish(sum engine.TickSummary) {
	b, err := json.Marshal(sum)
	if err != nil {
		slog.Warn("encode tick summary", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
		}
	}
}

// Subscribe registers a subscriber. It returns false when the hub is full.
func (h *Hub) Subscribe() (int, <-chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) >= maxStreamConns {
		return 0, nil, false
	}
	h.nextID++
	ch := make(chan []byte, 8)
	h.subs[h.nextID] = ch
	return h.nextID, ch, true
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes every TickSummary.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, ch, ok := s.Hub.Subscribe()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.Hub.Unsubscribe(id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "sub_id", id)

	// Reader: only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case b := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}
