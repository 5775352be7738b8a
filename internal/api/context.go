// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package api

import (
	"context"

	"github.com/sablecast/sable/internal/session"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	tokenContextKey   contextKey = "access_token"
)

// contextWithSession stores the authenticated session and its access token
// on the request context.
func contextWithSession(ctx context.Context, sess *session.Session, token string) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, sess)
	return context.WithValue(ctx, tokenContextKey, token)
}

// sessionFromContext returns the authenticated session, or nil when the
// request did not pass the Authenticate middleware.
func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

// tokenFromContext returns the access token the request authenticated with.
func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}
