// Package hub fans task events out to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/agentmcp/internal/domain"
)

// Filter narrows the events a connection receives. Empty fields match everything.
type Filter struct {
	AgentID string
	TaskID  string
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev domain.TaskEvent) bool {
	if f.AgentID != "" && f.AgentID != ev.AgentID {
		return false
	}
	if f.TaskID != "" && f.TaskID != ev.TaskID {
		return false
	}
	return true
}

// Connection represents a single WebSocket subscriber.
type Connection struct {
	ID     string
	Filter Filter
	Conn   *websocket.Conn
	Send   chan []byte
	mu     sync.Mutex
}

// Hub manages all WebSocket connections.
type Hub struct {
	connections map[string]*Connection

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan domain.TaskEvent
	done       chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan domain.TaskEvent, 256),
		done:        make(chan struct{}),
		logger:      slog.Default().With("component", "hub"),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing every connection's Send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				close(conn.Send)
				delete(h.connections, id)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			h.logger.Debug("connection registered", "conn_id", conn.ID, "agent_id", conn.Filter.AgentID, "task_id", conn.Filter.TaskID)

		case conn := <-h.unregister:
			h.remove(conn)

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to encode event", "event_id", ev.EventID, "error", err)
				continue
			}
			var slow []*Connection
			h.mu.RLock()
			for _, conn := range h.connections {
				if !conn.Filter.Match(ev) {
					continue
				}
				select {
				case conn.Send <- data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				h.logger.Warn("connection buffer full, closing", "conn_id", conn.ID)
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		close(conn.Send)
		h.logger.Debug("connection unregistered", "conn_id", conn.ID)
	}
}

// NewConnection creates a connection. It must be passed to Register to receive events.
func (h *Hub) NewConnection(ws *websocket.Conn, filter Filter) *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		Filter: filter,
		Conn:   ws,
		Send:   make(chan []byte, 64),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues an event for delivery. It never blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(ev domain.TaskEvent) error {
	select {
	case h.broadcast <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrQueueFull is returned by Publish when the broadcast queue is full.
var ErrQueueFull = errors.New("event queue full")
