// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package websocket

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sablecast/sable/internal/models"
	"github.com/sablecast/sable/internal/session"
)

// Controller pushes commands and notifications to a session's sockets. It is
// the WebSocket implementation of the session manager's controller port.
type Controller struct {
	hub       *Hub
	sessionID string
	breaker   *gobreaker.CircuitBreaker[any]
}

var _ session.DisposableController = (*Controller)(nil)

// NewController binds a controller to the session's sockets on the hub.
func NewController(hub *Hub, sessionID string) *Controller {
	return &Controller{
		hub:       hub,
		sessionID: sessionID,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name: "ws-" + sessionID,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// IsSessionActive reports whether the session has a live socket.
func (c *Controller) IsSessionActive() bool {
	return c.hub.HasClients(c.sessionID)
}

// SupportsMediaControl reports whether remote commands can reach the client.
// For the socket transport that is equivalent to having a live connection.
func (c *Controller) SupportsMediaControl() bool {
	return c.hub.HasClients(c.sessionID)
}

// OnActivity is a no-op for the socket transport: liveness is maintained by
// the write pump's ping cycle and inbound frames refresh activity directly.
func (c *Controller) OnActivity() {}

func (c *Controller) push(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.hub.SendToSession(c.sessionID, msg)
	})
	return err
}

// SendGeneralCommand pushes a named command to the client.
func (c *Controller) SendGeneralCommand(ctx context.Context, cmd *models.GeneralCommand) error {
	return c.push(ctx, Message{MessageType: MessageTypeGeneralCommand, Data: cmd})
}

// SendPlaystateCommand pushes a playstate verb to the client.
func (c *Controller) SendPlaystateCommand(ctx context.Context, cmd *models.PlaystateRequest) error {
	return c.push(ctx, Message{MessageType: MessageTypePlaystate, Data: cmd})
}

// SendPlayCommand pushes a play request to the client.
func (c *Controller) SendPlayCommand(ctx context.Context, cmd *models.PlayRequest) error {
	return c.push(ctx, Message{MessageType: MessageTypePlay, Data: cmd})
}

// SendMessage pushes a named payload to the client.
func (c *Controller) SendMessage(ctx context.Context, name string, data any) error {
	return c.push(ctx, Message{MessageType: name, Data: data})
}

// SendPlaybackStartNotification announces another session's playback start.
func (c *Controller) SendPlaybackStartNotification(ctx context.Context, info models.SessionInfo) error {
	return c.push(ctx, Message{MessageType: MessageTypePlaybackStart, Data: info})
}

// SendPlaybackStoppedNotification announces another session's playback stop.
func (c *Controller) SendPlaybackStoppedNotification(ctx context.Context, info models.SessionInfo) error {
	return c.push(ctx, Message{MessageType: MessageTypePlaybackStopped, Data: info})
}

// SendSessionEndedNotification announces another session's removal.
func (c *Controller) SendSessionEndedNotification(ctx context.Context, info models.SessionInfo) error {
	return c.push(ctx, Message{MessageType: MessageTypeSessionEnded, Data: info})
}

// SendServerRestartNotification announces an imminent server restart.
func (c *Controller) SendServerRestartNotification(ctx context.Context) error {
	return c.push(ctx, Message{MessageType: MessageTypeServerRestarting})
}

// SendServerShutdownNotification announces an imminent server shutdown.
func (c *Controller) SendServerShutdownNotification(ctx context.Context) error {
	return c.push(ctx, Message{MessageType: MessageTypeServerShuttingDown})
}

// SendRestartRequiredNotification tells the client a restart is pending.
func (c *Controller) SendRestartRequiredNotification(ctx context.Context) error {
	return c.push(ctx, Message{MessageType: MessageTypeRestartRequired})
}

// Dispose disconnects the session's sockets.
func (c *Controller) Dispose() error {
	c.hub.CloseSession(c.sessionID)
	return nil
}

// Factory produces WebSocket controllers for new sessions.
type Factory struct {
	hub *Hub
}

// NewFactory creates a controller factory on the hub.
func NewFactory(hub *Hub) *Factory {
	return &Factory{hub: hub}
}

var _ session.ControllerFactory = (*Factory)(nil)

// GetSessionController implements session.ControllerFactory. Every session
// gets a socket controller; it activates once a socket connects.
func (f *Factory) GetSessionController(sess *session.Session) session.Controller {
	return NewController(f.hub, sess.ID())
}
