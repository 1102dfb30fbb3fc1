package websocket

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

type Client struct {
	UserID string
	Email  string

	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte   // Channel for outgoing messages
	rateLimiter *rate.Limiter // Rate limiter to prevent spamming
	closed      bool
	mu          sync.Mutex // Guards closed and send
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// readMessages feeds incoming frames to handle until the connection drops.
func (c *Client) readMessages(maxSize int64, pongWait time.Duration, handle func(*Client, []byte)) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		log.Debug("Connection closed", "user", c.UserID)
	}()

	c.conn.SetReadLimit(maxSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Error reading message", "user", c.UserID, "err", err)
			}
			return
		}
		handle(c, message)
	}
}

// writeMessages drains the send queue and keeps the connection alive with
// pings.
func (c *Client) writeMessages(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("Error sending message", "user", c.UserID, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
