// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Registry Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sable_sessions_active",
			Help: "Current number of registered sessions",
		},
	)

	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_sessions_started_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsEndedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_sessions_ended_total",
			Help: "Total number of sessions removed",
		},
	)

	SessionsIdleSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_sessions_idle_swept_total",
			Help: "Total number of playback states stopped by the idle sweeper",
		},
	)

	// Playback Metrics
	PlaybackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_playback_events_total",
			Help: "Total number of playback lifecycle events processed",
		},
		[]string{"kind"}, // "start", "progress", "stop"
	)

	// Remote Control Metrics
	RemoteCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_remote_commands_total",
			Help: "Total number of remote-control commands dispatched",
		},
		[]string{"kind"}, // "general", "playstate", "play"
	)

	FanoutFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_notification_fanout_failures_total",
			Help: "Total number of per-session delivery failures during broadcast fan-out",
		},
	)

	// Authentication Metrics
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_auth_attempts_total",
			Help: "Total number of authentication attempts by outcome",
		},
		[]string{"outcome"}, // "succeeded", "failed", "denied"
	)

	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_tokens_issued_total",
			Help: "Total number of access tokens minted",
		},
	)

	TokensRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_tokens_revoked_total",
			Help: "Total number of access tokens revoked",
		},
	)

	// Event Bus Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_events_published_total",
			Help: "Total number of events published to the in-process bus",
		},
		[]string{"topic"},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_event_publish_errors_total",
			Help: "Total number of failed event bus publishes",
		},
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sable_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sable_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sable_websocket_connections",
			Help: "Current number of established WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_websocket_messages_sent_total",
			Help: "Total number of messages written to WebSocket clients",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_websocket_messages_dropped_total",
			Help: "Total number of messages dropped due to slow WebSocket clients",
		},
	)

	// Token Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sable_token_store_operation_duration_seconds",
			Help:    "Duration of token store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_token_store_operation_errors_total",
			Help: "Total number of failed token store operations",
		},
		[]string{"operation"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreOperation records a token store operation metric
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordEventPublished records an event bus publish outcome
func RecordEventPublished(topic string, err error) {
	if err != nil {
		EventPublishErrors.Inc()
		return
	}
	EventsPublishedTotal.WithLabelValues(topic).Inc()
}
