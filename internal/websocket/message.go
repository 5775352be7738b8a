// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package websocket

// Message types pushed to clients over the session socket.
const (
	MessageTypeGeneralCommand     = "GeneralCommand"
	MessageTypePlaystate          = "Playstate"
	MessageTypePlay               = "Play"
	MessageTypePlaybackStart      = "PlaybackStart"
	MessageTypePlaybackProgress   = "PlaybackProgress"
	MessageTypePlaybackStopped    = "PlaybackStopped"
	MessageTypeSessionStarted     = "SessionStarted"
	MessageTypeSessionActivity    = "SessionActivity"
	MessageTypeSessionEnded       = "SessionEnded"
	MessageTypeCapabilities       = "CapabilitiesChanged"
	MessageTypeServerRestarting   = "ServerRestarting"
	MessageTypeServerShuttingDown = "ServerShuttingDown"
	MessageTypeRestartRequired    = "RestartRequired"
	MessageTypeKeepAlive          = "KeepAlive"
)

// Message is the envelope for every frame on the session socket.
type Message struct {
	MessageType string `json:"message_type"`
	Data        any    `json:"data,omitempty"`
}
