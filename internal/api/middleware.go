// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/session"
)

// SessionResolver resolves a bearer token into the live session it belongs
// to, refreshing its activity. *session.Manager satisfies it.
type SessionResolver interface {
	GetSessionByAuthenticationToken(ctx context.Context, accessToken, remoteEndPoint, appVersion string) (*session.Session, error)
}

var _ SessionResolver = (*session.Manager)(nil)

// MiddlewareConfig holds configuration for the middleware factories.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string

	// RateLimitRPS caps per-IP request rate across the API. Zero disables
	// rate limiting.
	RateLimitRPS int
}

// loginRateLimit is the per-IP budget for authentication attempts. Kept
// strict independent of the general limit to slow brute forcing.
var loginRateLimit = struct {
	requests int
	window   time.Duration
}{requests: 5, window: 5 * time.Minute}

// Middleware provides Chi-compatible middleware built from the ecosystem
// implementations (go-chi/cors, go-chi/httprate).
type Middleware struct {
	cfg      MiddlewareConfig
	cors     func(http.Handler) http.Handler
	resolver SessionResolver
}

// NewMiddleware creates the middleware set for the router.
func NewMiddleware(cfg MiddlewareConfig, resolver SessionResolver) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Sable-Token"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		cfg:      cfg,
		cors:     corsHandler,
		resolver: resolver,
	}
}

// CORS returns the CORS middleware. Global so OPTIONS preflight is handled
// on every route.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the general per-IP rate limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.cfg.RateLimitRPS <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		m.cfg.RateLimitRPS,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RateLimitLogin returns the strict per-IP limiter for credential endpoints.
func (m *Middleware) RateLimitLogin() func(http.Handler) http.Handler {
	return httprate.LimitByIP(loginRateLimit.requests, loginRateLimit.window)
}

// CorrelationID seeds each request context with a fresh correlation ID so
// log lines across the request share one.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.ContextWithNewCorrelationID(r.Context())))
		})
	}
}

// Metrics records per-request duration, count, and in-flight gauge, labeled
// by the matched route pattern rather than the raw path so session IDs do
// not explode cardinality.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			next.ServeHTTP(ww, r)

			endpoint := chi.RouteContext(r.Context()).RoutePattern()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(start))
		})
	}
}

// Authenticate resolves the request's bearer token into a live session and
// stores it on the context. Requests without a valid token get a 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			NewResponseWriter(w, r).Unauthorized("missing access token")
			return
		}

		sess, err := m.resolver.GetSessionByAuthenticationToken(r.Context(), token, remoteAddr(r), "")
		if err != nil {
			logging.Warn().Err(err).Str("remote", remoteAddr(r)).Msg("request authentication failed")
			NewResponseWriter(w, r).Unauthorized("invalid access token")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), sess, token)))
	})
}

// bearerToken extracts the access token from the query string, the
// Authorization header, or the X-Sable-Token header, in that order.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("api_key"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-Sable-Token")
}

// remoteAddr strips the port from the request's remote address.
func remoteAddr(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
