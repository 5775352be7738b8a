// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/session"
)

// SessionResolver turns a bearer token into a live session. The session
// manager implements it.
type SessionResolver interface {
	GetSessionByAuthenticationToken(ctx context.Context, accessToken, remoteEndPoint, appVersion string) (*session.Session, error)
}

// Handler upgrades authenticated requests to session sockets.
type Handler struct {
	resolver SessionResolver
	hub      *Hub
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler.
func NewHandler(resolver SessionResolver, hub *Hub, cfg Config) *Handler {
	return &Handler{
		resolver: resolver,
		hub:      hub,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Browsers enforce same-origin for page loads, not sockets;
			// the bearer token is the actual authentication here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the request, upgrades it, and binds the socket to
// the token's session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}

	sess, err := h.resolver.GetSessionByAuthenticationToken(r.Context(), token, r.RemoteAddr, "")
	if err != nil {
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket authentication failed")
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, sess.ID(), h.cfg, func() {
		sess.UpdateActivity(time.Now().UTC())
	})
	h.hub.register(client)
	client.Start()
}

// bearerToken extracts the access token from the query string or headers.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("api_key"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Sable-Token")
}
