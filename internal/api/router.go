// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig selects the optional surfaces of the router.
type RouterConfig struct {
	MetricsEnabled bool
}

// NewRouter assembles the HTTP routing tree. wsHandler serves the websocket
// controller upgrade; it performs its own token resolution during the
// handshake.
func NewRouter(handler *Handler, mw *Middleware, wsHandler http.Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(chimiddleware.RequestID)
	r.Use(CorrelationID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Get("/health", handler.Health)
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	// Credential endpoint carries the strict limiter on top of the general
	// one.
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics())
		r.With(mw.RateLimitLogin()).Post("/Users/AuthenticateByName", handler.AuthenticateByName)
	})

	// Session tree requires an authenticated caller.
	r.Route("/Sessions", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics())
		r.Use(mw.Authenticate)

		r.Get("/", handler.Sessions)
		r.Post("/Logout", handler.Logout)
		r.Post("/Capabilities", handler.Capabilities)
		r.Post("/Capabilities/Full", handler.CapabilitiesFull)
		r.Post("/Viewing", handler.Viewing)

		r.Post("/Playing", handler.PlayingStart)
		r.Post("/Playing/Progress", handler.PlayingProgress)
		r.Post("/Playing/Stopped", handler.PlayingStopped)
		r.Post("/Playing/Ping", handler.PlayingPing)

		r.Route("/{sessionId}", func(r chi.Router) {
			r.Post("/Command", handler.Command)
			r.Post("/Command/{name}", handler.CommandByName)
			r.Post("/Playing", handler.Play)
			r.Post("/Playing/{command}", handler.Playstate)
			r.Post("/Message", handler.Message)
			r.Post("/Viewing", handler.Browse)
			r.Post("/User/{userId}", handler.AddUser)
			r.Delete("/User/{userId}", handler.RemoveUser)
		})
	})

	if wsHandler != nil {
		r.With(mw.RateLimit()).Get("/ws", wsHandler.ServeHTTP)
	}

	return r
}
