// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package services provides suture.Service wrappers for Sable components.

Each wrapper translates a component's native lifecycle into suture's
context-aware Serve pattern and implements fmt.Stringer so supervisor logs
can name it:

  - HTTPServerService wraps *http.Server: ListenAndServe in a goroutine,
    graceful Shutdown with its own timeout on context cancellation.
  - EventBroadcastService consumes the session and playback topics from the
    event bus and mirrors them to every connected WebSocket.
  - TokenStoreGCService runs periodic Badger value-log GC for the durable
    token store.

Return-value semantics follow suture: an error means crash-and-restart,
returning after context cancellation means clean shutdown.
*/
package services
