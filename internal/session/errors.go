// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import "errors"

// Sentinel error kinds surfaced by the session core. Callers classify with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrInvalidArgument covers missing or empty required inputs, negative
	// position ticks, and play-access or media-type denials.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSessionNotFound is returned when a session id lookup misses.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSecurityDenied covers parental schedule, device access, and bad
	// credential rejections.
	ErrSecurityDenied = errors.New("access denied")

	// ErrDisposed is returned by every public entry point after the manager
	// has been disposed.
	ErrDisposed = errors.New("session manager is disposed")

	// ErrTokenNotFound is returned when an access token has no active row.
	ErrTokenNotFound = errors.New("access token not found")
)
