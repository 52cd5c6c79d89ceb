package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var (
	ErrNotConnected = errors.New("user not connected")
	ErrBufferFull   = errors.New("connection buffer full")
	ErrClosed       = errors.New("manager closed")
)

// Manager handles WebSocket connections and message routing
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	hub         *Hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	pumps       sync.WaitGroup
	closeOnce   sync.Once
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID          string
	UserID      string
	Conn        *websocket.Conn
	Send        chan notifications.WebSocketMessage
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string
}

// Hub serialises registration and broadcast
type Hub struct {
	broadcast  chan notifications.WebSocketMessage
	register   chan *Connection
	unregister chan *Connection
	stop       chan struct{}
	done       chan struct{}
}

// NewManager creates a new WebSocket manager and starts its hub
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		connections: make(map[string]*Connection),
		hub: &Hub{
			broadcast:  make(chan notifications.WebSocketMessage, 256),
			register:   make(chan *Connection),
			unregister: make(chan *Connection),
			stop:       make(chan struct{}),
			done:       make(chan struct{}),
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	go m.run()
	return m
}

// AllowOrigins restricts the accepted Origin headers. With no origins set
// the gorilla same-origin check applies.
func (m *Manager) AllowOrigins(origins ...string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	m.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Handle upgrades the request; identify returns the caller's user id.
func (m *Manager) Handle(identify func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := m.HandleConnection(c.Writer, c.Request, identify(c)); err != nil {
			m.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
	}
}

// HandleConnection handles new WebSocket connections
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan notifications.WebSocketMessage, sendBuffer),
		ConnectedAt: time.Now(),
		UserAgent:   r.Header.Get("User-Agent"),
		IPAddress:   r.RemoteAddr,
	}

	select {
	case m.hub.register <- connection:
	case <-m.hub.done:
		conn.Close()
		return nil, ErrClosed
	}

	m.pumps.Add(2)
	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// readPump reads client messages until the connection fails
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.done:
		}
		conn.Conn.Close()
		m.pumps.Done()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg notifications.WebSocketMessage
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		m.handleMessage(conn, &msg)
	}
}

// writePump drains conn.Send until the hub closes it
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
		m.pumps.Done()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers client pings; other client messages are ignored
func (m *Manager) handleMessage(conn *Connection, msg *notifications.WebSocketMessage) {
	if msg.Type != notifications.WSMessageTypePing {
		return
	}
	reply := notifications.WebSocketMessage{
		Type:      notifications.WSMessageTypePong,
		Data:      map[string]interface{}{"connection_id": conn.ID},
		Timestamp: time.Now(),
		Target:    conn.UserID,
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.connections[conn.ID]; ok {
		select {
		case conn.Send <- reply:
		default:
		}
	}
}

// run owns the connection set; only it closes Send channels
func (m *Manager) run() {
	h := m.hub
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			m.mu.Lock()
			m.connections[conn.ID] = conn
			m.mu.Unlock()
			m.logger.Debug("websocket registered", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))

		case conn := <-h.unregister:
			m.mu.Lock()
			m.remove(conn)
			m.mu.Unlock()

		case message := <-h.broadcast:
			m.mu.Lock()
			for _, conn := range m.connections {
				select {
				case conn.Send <- message:
				default:
					m.remove(conn)
					conn.Conn.Close()
				}
			}
			m.mu.Unlock()

		case <-h.stop:
			m.mu.Lock()
			for _, conn := range m.connections {
				m.remove(conn)
				conn.Conn.Close()
			}
			m.mu.Unlock()
			return
		}
	}
}

// remove must be called with m.mu held
func (m *Manager) remove(conn *Connection) {
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
		close(conn.Send)
	}
}

// SendToUser sends a message to every connection of a user
func (m *Manager) SendToUser(userID string, message notifications.WebSocketMessage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	sent := 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		select {
		case conn.Send <- message:
			sent++
		default:
		}
	}
	if sent == 0 {
		for _, conn := range m.connections {
			if conn.UserID == userID {
				return ErrBufferFull
			}
		}
		return ErrNotConnected
	}
	return nil
}

// Broadcast sends a message to all connected users
func (m *Manager) Broadcast(message notifications.WebSocketMessage) error {
	select {
	case <-m.hub.done:
		return ErrClosed
	default:
	}
	select {
	case m.hub.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// ConnectionInfo represents connection information for monitoring
type ConnectionInfo struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
}

// GetConnectionInfo returns information about all active connections
func (m *Manager) GetConnectionInfo() []ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := make([]ConnectionInfo, 0, len(m.connections))
	for _, conn := range m.connections {
		info = append(info, ConnectionInfo{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			ConnectedAt:  conn.ConnectedAt,
			UserAgent:    conn.UserAgent,
			IPAddress:    conn.IPAddress,
		})
	}
	return info
}

// Close stops the hub, closes every connection and waits for the pumps.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.hub.stop)
		<-m.hub.done
		m.pumps.Wait()
	})
}
