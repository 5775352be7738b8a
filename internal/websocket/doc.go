// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package websocket is the push transport binding sessions to their clients.

A client authenticates with its access token, upgrades at /ws, and receives
remote-control commands and lifecycle notifications for its session over the
socket. It uses the gorilla/websocket library with a hub-client architecture.

Key Components:

  - Hub: indexes live sockets by session and fans messages out to them
  - Client: one WebSocket connection with read/write goroutines
  - Controller: the session manager's controller port, backed by the hub
  - Handler: the authenticated HTTP upgrade endpoint

Each client has two goroutines:
  - readPump: reads frames, refreshes session activity, answers keep-alives
  - writePump: writes queued messages and protocol pings

Message Types:

Frames pushed to clients carry a message_type and an optional data payload:

  - GeneralCommand, Playstate, Play: remote-control dispatch
  - PlaybackStart, PlaybackStopped, SessionEnded: lifecycle broadcasts
  - ServerRestarting, ServerShuttingDown, RestartRequired: server lifecycle
  - KeepAlive: echoed back to clients that send it

Connection Lifecycle:

 1. Client connects with its token (api_key query param or Authorization header)
 2. Handler resolves the token to a session and upgrades the connection
 3. Hub registers the socket under the session
 4. Controller pushes commands and notifications through the hub
 5. On disconnect or session end the socket is unregistered and closed

Slow consumers have messages dropped rather than stalling broadcasts; each
controller wraps its sends in a circuit breaker so a dead transport fails
fast during fan-out.

Thread Safety:

The hub guards its index with a mutex; each client's send queue is a
buffered channel owned by its write goroutine. Controllers hold no mutable
state beyond the breaker.
*/
package websocket
