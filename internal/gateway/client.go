package gateway

import (
	"fmt"
	"sync"

	"github.com/scrawl-game/scrawl/internal/game/room"
)

// wsConn is the subset of *websocket.Conn the gateway uses, extracted so
// tests can drive the read loop with a scripted connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// client is one live connection and its session binding. Outbound
// messages are queued on a buffered channel drained by a single writer
// goroutine, so room broadcasts never block on a slow socket.
type client struct {
	id   string
	conn wsConn

	send chan room.Message

	mu     sync.Mutex
	closed bool

	// Binding, set once by a successful join. roomID doubles as the
	// "has joined" flag: events arriving before it is set are ignored.
	roomID   string
	playerID string
	label    string
}

// newClient creates a client for the given connection.
//
// Precondition: id must be non-empty; conn must be non-nil.
func newClient(id string, conn wsConn, bufSize int) *client {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &client{
		id:   id,
		conn: conn,
		send: make(chan room.Message, bufSize),
	}
}

// push enqueues a message for the writer goroutine without blocking.
//
// Postcondition: The message is queued, or an error is returned when the
// client is closed or its buffer is full.
func (c *client) push(msg room.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// close marks the client closed and closes the send channel, stopping the
// writer goroutine. Idempotent.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// isClosed reports whether close has been called.
func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// writePump drains the send channel onto the socket. It exits when the
// channel is closed or a write fails; a failed write closes the socket so
// the read loop observes the error and tears the session down.
func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			_ = c.conn.Close()
			return
		}
	}
}
