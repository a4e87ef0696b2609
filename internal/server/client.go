package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const (
	// pongWait is how long a connection may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Client is the transport side of one chat session: a WebSocket connection,
// its outbound queue, and its read/write pumps.
type Client struct {
	id       string
	username string
	addr     string
	conn     *websocket.Conn
	hub      *Hub
	logger   *slog.Logger

	// send and closed are owned by the hub goroutine; the write pump only
	// receives from send.
	send   chan []byte
	closed bool

	limiter   *rateLimiter
	rateLimit RateLimitConfig
	readLimit int64
}

var _ chat.Outbox = (*Client)(nil)

// NewClient creates a Client for an upgraded connection. conn may be nil,
// in which case the hub registers the session but starts no pumps.
func NewClient(conn *websocket.Conn, hub *Hub, id, username, addr string, cfg Config) *Client {
	cfg = cfg.sanitized()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:        id,
		username:  username,
		addr:      addr,
		conn:      conn,
		hub:       hub,
		logger:    hub.logger.With("conn_id", id, "addr", addr),
		send:      make(chan []byte, cfg.SendBuffer),
		limiter:   newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit: cfg.RateLimit,
		readLimit: cfg.MaxMessageSize,
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Username returns the identity the connection was opened with.
func (c *Client) Username() string { return c.username }

// Deliver queues payload without blocking.
func (c *Client) Deliver(payload []byte) error {
	if c.closed {
		return fmt.Errorf("%w: connection %s closed", chat.ErrTransport, c.id)
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full for %s", chat.ErrTransport, c.id)
	}
}

// Close closes the send queue. The write pump answers with a close frame
// and drops the connection.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump feeds decoded frames to the hub until the connection fails or
// the hub stops.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.closeConn()
	}()

	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.logger.Warn("rate limit exceeded; discarding frame",
				"burst", c.rateLimit.Burst,
				"refill_interval", c.rateLimit.RefillInterval,
			)
			continue
		}

		ev := decodeEvent(raw)
		ev.client = c
		if ev.err != nil {
			c.logger.Debug("rejecting client event", "event", ev.name, "error", ev.err)
		}
		if !c.hub.dispatch(ev) {
			return
		}
	}
}

func (c *Client) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("setting read deadline", "error", err)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "max_bytes", c.readLimit)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", "reason", err)
	default:
		c.logger.Warn("websocket read error", "error", err)
	}
}

// writePump writes one text frame per queued event and pings on a timer.
// It exits when the send queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				if err := c.write(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.logger.Debug("writing close frame", "error", err)
				}
				return
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.logger.Warn("writing event", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("writing ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) closeConn() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("closing connection", "error", err)
	}
}
