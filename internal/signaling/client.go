package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/spec-kit/verification-service/internal/config"
)

// client is one live websocket connection. Outbound frames go through a
// buffered channel drained by a single writer goroutine, so Send never blocks
// the room lock or another peer's read loop. A peer that cannot drain its
// queue loses frames rather than stalling the call.
type client struct {
	id   string
	role Role
	conn *websocket.Conn
	cfg  config.SignalingConfig

	send chan Envelope
	once sync.Once
	done chan struct{}
}

func newClient(id string, role Role, conn *websocket.Conn, cfg config.SignalingConfig) *client {
	return &client{
		id:   id,
		role: role,
		conn: conn,
		cfg:  cfg,
		send: make(chan Envelope, cfg.SendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }
func (c *client) Role() Role { return c.role }

// Send enqueues a frame without blocking. It reports false when the client is
// gone or its queue is full.
func (c *client) Send(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// close makes Send fail fast and wakes the writer. Safe to call repeatedly.
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump is the only writer on the connection. It serializes queued frames
// and keepalive pings until close() or a write error.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			raw, err := json.Marshal(env)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
