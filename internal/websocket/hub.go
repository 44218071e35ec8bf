package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client wraps a connection with a write lock: gorilla/websocket allows at
// most one concurrent writer per connection, and several workers may publish
// to the same session at once.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans out processing updates to browser sessions. A session may hold
// several connections (multiple tabs); each receives every update.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
}

func NewHub() *Hub {
	return &Hub{connections: make(map[string][]*client)}
}

// HandleWebSocket upgrades the request and registers the connection under
// the caller's session id.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(session, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(session, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(session string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[session] = append(h.connections[session], &client{conn: conn})
	log.Printf("WebSocket connected: session %s (total: %d)", session, len(h.connections[session]))
}

func (h *Hub) unregisterConnection(session string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	clients := h.connections[session]
	for i, c := range clients {
		if c.conn == conn {
			h.connections[session] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[session]) == 0 {
		delete(h.connections, session)
	}

	log.Printf("WebSocket disconnected: session %s", session)
}

func (h *Hub) broadcast(session string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[session] {
		c.write(data)
	}
}

// SendToSession marshals msg and delivers it to every connection the
// session holds. Sessions with no open connections are silently skipped.
func (h *Hub) SendToSession(session string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(session, data)
}
