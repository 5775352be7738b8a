// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// Topic names for the in-process bus. Subscribers use these with Subscribe.
const (
	TopicSessionStarted      = "session.started"
	TopicSessionEnded        = "session.ended"
	TopicSessionActivity     = "session.activity"
	TopicCapabilitiesChanged = "session.capabilities"
	TopicPlaybackStart       = "playback.start"
	TopicPlaybackProgress    = "playback.progress"
	TopicPlaybackStopped     = "playback.stopped"
	TopicAuthSucceeded       = "auth.succeeded"
	TopicAuthFailed          = "auth.failed"
)

// metadata key carrying the topic on each message, useful for subscribers
// that aggregate multiple topics into one stream.
const MetadataEventType = "event_type"

// Config tunes the bus channel buffering.
type Config struct {
	// BufferSize is the per-subscriber channel depth. Default: 256.
	BufferSize int64
}

// Bus is an in-process publish/subscribe hub for session lifecycle,
// playback, and authentication events. Publishing never blocks the caller
// beyond channel buffering; a slow subscriber cannot stall the session
// manager's hot path.
type Bus struct {
	pubSub  *gochannel.GoChannel
	breaker *gobreaker.CircuitBreaker[any]
	logger  watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the bus with the given buffering config.
func NewBus(cfg Config) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	logger := NewLoggerAdapter()
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.BufferSize,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, logger)

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: "event-bus",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Bus{
		pubSub:  ps,
		breaker: breaker,
		logger:  logger,
	}
}

// Subscribe returns a channel of raw messages for the topic. The channel is
// closed when ctx is cancelled or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}
	return b.pubSub.Subscribe(ctx, topic)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubSub.Close()
}

// publish serializes the payload and sends it on the topic. Failures are
// logged and counted, never surfaced to the session manager: event delivery
// is best-effort relative to the state change that triggered it.
func (b *Bus) publish(topic string, payload any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordEventPublished(topic, err)
		logging.Error().Err(err).Str("topic", topic).Msg("failed to marshal event payload")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataEventType, topic)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.pubSub.Publish(topic, msg)
	})
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}

// PublishSessionStarted announces a newly registered session.
func (b *Bus) PublishSessionStarted(info models.SessionInfo) {
	b.publish(TopicSessionStarted, info)
}

// PublishSessionEnded announces a removed session.
func (b *Bus) PublishSessionEnded(info models.SessionInfo) {
	b.publish(TopicSessionEnded, info)
}

// PublishSessionActivity announces a session activity refresh. The session
// manager throttles these before calling.
func (b *Bus) PublishSessionActivity(info models.SessionInfo) {
	b.publish(TopicSessionActivity, info)
}

// PublishCapabilitiesChanged announces a capabilities report.
func (b *Bus) PublishCapabilitiesChanged(info models.SessionInfo) {
	b.publish(TopicCapabilitiesChanged, info)
}

// PublishPlaybackStart announces the start of playback in a session.
func (b *Bus) PublishPlaybackStart(event *models.PlaybackEvent) {
	b.publish(TopicPlaybackStart, event)
}

// PublishPlaybackProgress announces a playback progress tick, client-reported
// or automated.
func (b *Bus) PublishPlaybackProgress(event *models.PlaybackEvent) {
	b.publish(TopicPlaybackProgress, event)
}

// PublishPlaybackStopped announces the end of playback in a session.
func (b *Bus) PublishPlaybackStopped(event *models.PlaybackStopped) {
	b.publish(TopicPlaybackStopped, event)
}

// PublishAuthenticationSucceeded announces a successful authentication.
func (b *Bus) PublishAuthenticationSucceeded(result *models.AuthenticationResult) {
	b.publish(TopicAuthSucceeded, result)
}

// PublishAuthenticationFailed announces a failed authentication attempt.
// The payload carries the request identity but never the credentials.
func (b *Bus) PublishAuthenticationFailed(request *models.AuthenticationRequest) {
	b.publish(TopicAuthFailed, sanitizeAuthRequest(request))
}

func sanitizeAuthRequest(request *models.AuthenticationRequest) *models.AuthenticationRequest {
	if request == nil {
		return nil
	}
	clean := *request
	clean.Password = ""
	clean.PasswordSha1 = ""
	clean.PasswordMd5 = ""
	return &clean
}
