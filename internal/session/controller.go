// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"

	"github.com/sablecast/sable/internal/models"
)

// Controller is the transport adapter bound to a session. It pushes commands
// and notifications back to the client. All outward calls accept a context
// so cancellation propagates to the transport.
type Controller interface {
	// IsSessionActive reports whether the transport link is live.
	IsSessionActive() bool

	// SupportsMediaControl reports whether the client honors remote
	// playback commands over this transport.
	SupportsMediaControl() bool

	// OnActivity is invoked on every activity report for the session.
	OnActivity()

	SendGeneralCommand(ctx context.Context, cmd *models.GeneralCommand) error
	SendPlaystateCommand(ctx context.Context, cmd *models.PlaystateRequest) error
	SendPlayCommand(ctx context.Context, cmd *models.PlayRequest) error

	// SendMessage pushes a named payload to the client.
	SendMessage(ctx context.Context, name string, data any) error

	SendPlaybackStartNotification(ctx context.Context, info models.SessionInfo) error
	SendPlaybackStoppedNotification(ctx context.Context, info models.SessionInfo) error
	SendSessionEndedNotification(ctx context.Context, info models.SessionInfo) error

	SendServerRestartNotification(ctx context.Context) error
	SendServerShutdownNotification(ctx context.Context) error
	SendRestartRequiredNotification(ctx context.Context) error
}

// DisposableController is implemented by controllers holding resources that
// must be released when the session ends.
type DisposableController interface {
	Controller
	Dispose() error
}

// TransportDescriptor identifies a controller's transport binding. Factories
// use it to detect that a session already has a controller for the same
// endpoint instead of downcasting.
type TransportDescriptor struct {
	Kind     string // "websocket", "http-callback", ...
	Endpoint string
}

// ControllerFactory produces a controller for a newly seen session, or nil
// when this transport does not serve the session. Factories are consulted in
// registration order; the first non-nil controller wins.
type ControllerFactory interface {
	GetSessionController(sess *Session) Controller
}

// ControllerFactoryFunc adapts a function to ControllerFactory.
type ControllerFactoryFunc func(sess *Session) Controller

// GetSessionController implements ControllerFactory.
func (f ControllerFactoryFunc) GetSessionController(sess *Session) Controller {
	return f(sess)
}
