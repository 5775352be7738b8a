// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package main is the entry point for the Sable server.

Sable is the session coordination core of a media server: it tracks every
connected client session, the playback state each one reports, and the
access tokens that authenticate them, and it routes remote-control commands
between sessions.

# Application Architecture

Long-running components run under a suture v4 supervisor tree:

	root ("sable")
	├── data-layer
	│   └── token store GC (Badger-backed store only)
	├── messaging-layer
	│   └── event broadcast (bus -> WebSocket feed)
	└── api-layer
	    └── HTTP server (chi router, REST + WebSocket upgrade)

Everything else is plain object wiring: the session manager binds the user,
library, device, and token collaborators, publishes lifecycle events on the
watermill bus, and hands each new session a WebSocket-backed controller.

# Configuration

Configuration is loaded via koanf with layered sources (highest wins):
environment variables (SABLE_ prefix), an optional YAML file
(SABLE_CONFIG_PATH or config.yaml), and built-in defaults.

Frequently used settings:

	SABLE_SERVER_PORT             HTTP listener port (default 8096)
	SABLE_AUTH_TOKEN_STORE        memory or badger (default memory)
	SABLE_AUTH_TOKEN_STORE_PATH   Badger directory for durable tokens
	SABLE_AUTH_ADMIN_USERNAME     seed an admin account at startup
	SABLE_AUTH_ADMIN_PASSWORD     password for the seeded account
	SABLE_SESSION_IDLE_TIMEOUT    playback idle sweep threshold (default 5m)
	SABLE_LOGGING_LEVEL           zerolog level (default info)

# Signal Handling

SIGINT and SIGTERM trigger graceful shutdown: connected clients receive a
ServerShuttingDown frame, the supervisor tree drains, live sessions are
disposed, and the token store is closed.
*/
package main
