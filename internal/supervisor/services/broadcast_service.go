// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/sablecast/sable/internal/events"
	"github.com/sablecast/sable/internal/websocket"
)

// EventSource is the subscription side of the event bus.
type EventSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Broadcaster pushes a frame to every connected socket. Satisfied by
// *websocket.Hub.
type Broadcaster interface {
	Broadcast(msg websocket.Message) int
}

// Session and playback topics are mirrored onto the socket feed so dashboard
// clients can follow server-wide activity. Authentication topics are
// deliberately absent: auth outcomes are not for general consumption.
var broadcastTopics = map[string]string{
	events.TopicSessionStarted:      websocket.MessageTypeSessionStarted,
	events.TopicSessionEnded:        websocket.MessageTypeSessionEnded,
	events.TopicSessionActivity:     websocket.MessageTypeSessionActivity,
	events.TopicCapabilitiesChanged: websocket.MessageTypeCapabilities,
	events.TopicPlaybackStart:       websocket.MessageTypePlaybackStart,
	events.TopicPlaybackProgress:    websocket.MessageTypePlaybackProgress,
	events.TopicPlaybackStopped:     websocket.MessageTypePlaybackStopped,
}

// EventBroadcastService subscribes to the session and playback topics on the
// event bus and re-broadcasts each event to all connected sockets. It is the
// bus's long-lived consumer and runs under the messaging layer of the
// supervisor tree.
type EventBroadcastService struct {
	source EventSource
	sink   Broadcaster
	name   string
}

// NewEventBroadcastService creates the bus-to-socket feed.
func NewEventBroadcastService(source EventSource, sink Broadcaster) *EventBroadcastService {
	return &EventBroadcastService{
		source: source,
		sink:   sink,
		name:   "event-broadcast",
	}
}

// Serve implements suture.Service. It subscribes to every feed topic, then
// forwards messages until the context is canceled or the bus closes. A
// subscription failure is returned so the supervisor restarts the feed.
func (s *EventBroadcastService) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for topic, messageType := range broadcastTopics {
		ch, err := s.source.Subscribe(ctx, topic)
		if err != nil {
			wg.Wait()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		wg.Add(1)
		go func(messageType string, ch <-chan *message.Message) {
			defer wg.Done()
			for msg := range ch {
				s.sink.Broadcast(websocket.Message{
					MessageType: messageType,
					Data:        json.RawMessage(msg.Payload),
				})
				msg.Ack()
			}
		}(messageType, ch)
	}

	wg.Wait()
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *EventBroadcastService) String() string {
	return s.name
}
