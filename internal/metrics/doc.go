// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the session coordination core with the Prometheus
client library, exposing metrics for session churn, playback event throughput,
remote-control dispatch, authentication outcomes, and transport health.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8096/metrics

# Available Metrics

Session registry:
  - sable_sessions_active: current registered sessions
  - sable_sessions_started_total / sable_sessions_ended_total: session churn
  - sable_sessions_idle_swept_total: playback stopped by the idle sweeper

Playback and control:
  - sable_playback_events_total{kind}: start/progress/stop throughput
  - sable_remote_commands_total{kind}: dispatched remote-control commands
  - sable_notification_fanout_failures_total: broadcast delivery failures

Authentication:
  - sable_auth_attempts_total{outcome}: succeeded/failed/denied attempts
  - sable_tokens_issued_total / sable_tokens_revoked_total: token lifecycle

Transport and infrastructure:
  - sable_api_* : HTTP request latency, throughput, in-flight count
  - sable_websocket_* : connection and message delivery counts
  - sable_events_published_total{topic}: in-process bus throughput
  - sable_token_store_* : persistence latency and errors

All metrics are registered via promauto at package initialization.
*/
package metrics
