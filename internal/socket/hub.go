// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// Event is the envelope written to every client.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// Hub keeps one connection per account id.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register adds a connection, replacing (and closing) any previous one for the same account.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[userID]; ok && old.conn != conn {
		old.conn.Close()
	}
	h.clients[userID] = &client{conn: conn}
	log.Info().Str("user_id", userID).Msg("websocket client registered")
}

// Unregister removes the client only if conn is still the current one.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[userID]; ok && c.conn == conn {
		delete(h.clients, userID)
		log.Info().Str("user_id", userID).Msg("websocket client unregistered")
	}
}

// Connected reports whether an account currently has an open connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Notify sends an event to one account. Offline clients and write failures
// are logged and dropped.
func (h *Hub) Notify(userID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		log.Debug().Str("user_id", userID).Str("event", event).Msg("websocket client offline, event dropped")
		return
	}

	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode websocket event")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("event", event).Msg("failed to deliver websocket event")
	}
}
