// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package websocket

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
)

// Config tunes the WebSocket transport. Values come from the websocket
// section of the application config.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	SendQueueSize   int
}

// DefaultConfig returns production defaults, also used by tests.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  64 << 10,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendQueueSize:   64,
	}
}

// Hub indexes live clients by session so controllers can push to every
// socket a session holds.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]bool
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*Client]bool)}
}

// register adds a client under its session.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.closeSend()
		return
	}

	clients := h.sessions[c.sessionID]
	if clients == nil {
		clients = make(map[*Client]bool)
		h.sessions[c.sessionID] = clients
	}
	clients[c] = true

	metrics.WSConnections.Inc()
	logging.Info().
		Uint64("client_id", c.id).
		Str("session_id", c.sessionID).
		Int("session_clients", len(clients)).
		Msg("websocket client connected")
}

// unregister drops a client and closes its send queue.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[c.sessionID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	c.closeSend()

	metrics.WSConnections.Dec()
	logging.Info().
		Uint64("client_id", c.id).
		Str("session_id", c.sessionID).
		Msg("websocket client disconnected")
}

// HasClients reports whether the session has at least one live socket.
func (h *Hub) HasClients(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// SendToSession queues the message on every socket the session holds,
// in client-ID order. It fails when the session has no live sockets.
func (h *Hub) SendToSession(sessionID string, msg Message) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("session %s has no connected websocket clients", sessionID)
	}

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	delivered := false
	for _, c := range clients {
		if c.trySend(msg) {
			delivered = true
		}
	}
	if !delivered {
		return fmt.Errorf("all websocket clients of session %s dropped the message", sessionID)
	}
	return nil
}

// Broadcast queues the message on every connected socket, best effort, and
// returns the number of clients that accepted it. Server-wide notifications
// and the event feed use this path.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	var clients []*Client
	for _, set := range h.sessions {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	delivered := 0
	for _, c := range clients {
		if c.trySend(msg) {
			delivered++
		}
	}
	return delivered
}

// CloseSession disconnects every socket the session holds.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.sessions[sessionID] {
		c.closeSend()
		metrics.WSConnections.Dec()
	}
	delete(h.sessions, sessionID)
}

// Shutdown disconnects everything. Registration afterwards is refused.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sessionID, clients := range h.sessions {
		for c := range clients {
			c.closeSend()
			metrics.WSConnections.Dec()
		}
		delete(h.sessions, sessionID)
	}
}
