package notification

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub pushes events to the websocket connections of their user. A user may
// hold several connections at once.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{conns: make(map[int64]map[*client]struct{})}
}

// Register tracks conn for userID and returns the func that forgets and closes
// it.
func (h *Hub) Register(userID int64, conn *websocket.Conn) func() {
	c := &client{conn: conn}

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { h.remove(userID, c) }) }
}

func (h *Hub) remove(userID int64, c *client) {
	h.mu.Lock()
	if set, ok := h.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Send writes the event to every connection of its user. Offline users are
// not an error; broken connections are dropped.
func (h *Hub) Send(_ context.Context, e Event) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[e.UserID]))
	for c := range h.conns[e.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteJSON(e)
		c.mu.Unlock()
		if err != nil {
			h.remove(e.UserID, c)
		}
	}
	return nil
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.conns {
		for c := range set {
			_ = c.conn.Close()
		}
		delete(h.conns, userID)
	}
}
