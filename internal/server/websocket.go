package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local clients only; the listener binds loopback
	},
}

// wsConn is a WebSocket connection with serialized writes, since
// responses and broadcast notifications come from different
// goroutines.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(value)
}

// WebSocketEndpoint handles WebSocket client connections.
type WebSocketEndpoint struct {
	cfg         *config.Config
	handler     *protocol.Handler
	connections map[string]*wsConn
	mu          sync.RWMutex
}

// NewWebSocketEndpoint creates a new WebSocket endpoint.
func NewWebSocketEndpoint(cfg *config.Config, handler *protocol.Handler) *WebSocketEndpoint {
	return &WebSocketEndpoint{
		cfg:         cfg,
		handler:     handler,
		connections: make(map[string]*wsConn),
	}
}

// ServeHTTP upgrades the request and serves protocol messages on it.
func (ws *WebSocketEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.cfg.Log(0, "WebSocket upgrade failed: %v", err)
		return
	}

	connID := generateConnectionID()
	wc := &wsConn{conn: conn}

	ws.mu.Lock()
	ws.connections[connID] = wc
	ws.mu.Unlock()

	ws.cfg.Log(1, "WebSocket connected: %s", connID)

	go ws.readPump(connID, wc)
}

// readPump reads messages from a WebSocket connection.
func (ws *WebSocketEndpoint) readPump(connID string, wc *wsConn) {
	defer func() {
		ws.mu.Lock()
		delete(ws.connections, connID)
		ws.mu.Unlock()
		wc.conn.Close()
		ws.cfg.Log(1, "WebSocket disconnected: %s", connID)
	}()

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.cfg.Log(0, "WebSocket read error: %v", err)
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			ws.cfg.Log(0, "parse message error: %v", err)
			wc.writeJSON(protocol.Err(err))
			continue
		}

		wc.writeJSON(ws.handler.HandleMessage(msg))
	}
}

// Broadcast sends a message to every connected client.
func (ws *WebSocketEndpoint) Broadcast(msg *protocol.Message) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	for _, wc := range ws.connections {
		wc.writeJSON(msg)
	}
	return nil
}

// CloseAll closes every connection.
func (ws *WebSocketEndpoint) CloseAll() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, wc := range ws.connections {
		wc.conn.Close()
	}
	ws.connections = make(map[string]*wsConn)
}

// generateConnectionID returns a random connection identifier.
func generateConnectionID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "conn-" + hex.EncodeToString(bytes)
}
