// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package api provides the HTTP surface of the session core, routed with
// Chi. Endpoints follow the Jellyfin shape: /Users/AuthenticateByName mints
// tokens, the /Sessions tree reports playback and dispatches remote-control
// commands, and /ws upgrades a connection into a session controller.
//
// All /Sessions routes require a bearer token; the Authenticate middleware
// resolves it into a live session and stores it on the request context.
// Responses use a uniform envelope with success/error discrimination and
// per-request metadata (request ID, duration).
package api
