package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"studysync/pkg/types"
)

const (
	writeTimeout        = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Connection wraps a websocket connection with a single writer goroutine.
// All writes go through writeCh so concurrent broadcasts never race on the
// underlying connection.
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan []byte
	pingInterval time.Duration
	actor        types.Actor
	sessionID    string
	bound        bool
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	mu           sync.RWMutex
}

// NewConnection wraps an upgraded websocket connection and starts its
// writer goroutine, which also drives keepalive pings. bufferSize is the
// pending-write capacity per client.
func NewConnection(conn *websocket.Conn, bufferSize int, pingInterval time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		pingInterval: pingInterval,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	// writeCh is never closed; producers check ctx before and while
	// sending, so a late message at worst lands in the buffer unread.
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON-encoded message for delivery.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the writer goroutine and the underlying connection.
// Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Bind attaches the resolved actor identity and session to the connection.
// Identity comes from the user directory at accept time, never from the
// transport-level connection id.
func (c *Connection) Bind(actor types.Actor, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actor = actor
	c.sessionID = sessionID
	c.bound = true
}

// IsBound reports whether an actor identity has been attached.
func (c *Connection) IsBound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bound
}

// Actor returns the bound actor identity.
func (c *Connection) Actor() types.Actor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actor
}

// SessionID returns the session this connection joined.
func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Done exposes the connection's cancellation channel.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
