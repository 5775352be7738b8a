// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
)

// clientIDCounter generates unique, monotonically increasing IDs for clients
// so log lines and orderings are stable.
var clientIDCounter atomic.Uint64

// Client is one WebSocket connection bound to a session. A session may hold
// several clients at once (the same app open in two tabs).
type Client struct {
	id        uint64
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	cfg       Config

	// sendMu orders closeSend after any in-flight trySend. Fan-out runs
	// outside the hub lock, so without it a client disconnecting mid-send
	// would close the channel under a pending send.
	sendMu sync.Mutex
	send   chan Message
	closed bool

	// limiter throttles activity refreshes triggered by inbound frames so
	// chatty clients do not flood the session manager.
	limiter    *rate.Limiter
	onActivity func()
}

// newClient wires a connection to the hub. onActivity fires, rate-limited,
// for every inbound frame.
func newClient(hub *Hub, conn *websocket.Conn, sessionID string, cfg Config, onActivity func()) *Client {
	return &Client{
		id:         clientIDCounter.Add(1),
		sessionID:  sessionID,
		hub:        hub,
		conn:       conn,
		send:       make(chan Message, cfg.SendQueueSize),
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(5*time.Second), 1),
		onActivity: onActivity,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// SessionID returns the session this client belongs to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// trySend queues a message without blocking. A full queue drops the message;
// slow consumers must not stall broadcast fan-out. Sending to a client that
// already disconnected is a silent no-op.
func (c *Client) trySend(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Uint64("client_id", c.id).
			Str("session_id", c.sessionID).
			Str("message_type", msg.MessageType).
			Msg("dropping message for slow websocket client")
		return false
	}
}

// closeSend shuts the send queue exactly once, after any in-flight trySend
// has finished.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps frames from the connection into activity refreshes until
// the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close error")
			}
			break
		}

		// Any inbound frame proves the client is alive.
		if c.onActivity != nil && c.limiter.Allow() {
			c.onActivity()
		}

		if msg.MessageType == MessageTypeKeepAlive {
			c.trySend(Message{MessageType: MessageTypeKeepAlive})
		}
	}
}

// writePump pumps queued messages and pings onto the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Uint64("client_id", c.id).Msg("failed to write JSON message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
