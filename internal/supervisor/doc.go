// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package supervisor provides process supervision for Sable using suture v4.

The supervisor tree organizes long-running services into three layers for
failure isolation:

	root ("sable")
	├── data-layer
	│   └── TokenStoreGCService (Badger token store only)
	├── messaging-layer
	│   └── EventBroadcastService
	└── api-layer
	    └── HTTPServerService

A crash in one layer restarts that layer's services without touching the
others: the event feed can restart while the HTTP server keeps serving, and
vice versa. Crashed services are restarted with the failure threshold, decay,
and backoff from TreeConfig; supervisor events are logged through slog via
the sutureslog adapter.

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error triggers a restart; returning after context cancellation
is a normal shutdown. Service wrappers live in the services subpackage.
*/
package supervisor
