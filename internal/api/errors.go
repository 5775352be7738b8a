// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package api

import (
	"errors"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/session"
)

// writeSessionError maps a session-core error onto the HTTP response. The
// core's sentinel errors carry the classification; everything unrecognized
// is a 500.
func writeSessionError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		rw.BadRequest(err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, session.ErrTokenNotFound):
		rw.Unauthorized("invalid access token")
	case errors.Is(err, session.ErrSecurityDenied):
		rw.Forbidden("access denied")
	case errors.Is(err, session.ErrDisposed):
		rw.ServiceUnavailable("server is shutting down")
	default:
		logging.Error().Err(err).Msg("unhandled session error")
		rw.InternalError("an internal error occurred")
	}
}
