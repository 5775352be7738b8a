// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

// PlayCommand tells the target session how to treat the item list.
type PlayCommand string

const (
	PlayCommandPlayNow        PlayCommand = "PlayNow"
	PlayCommandPlayNext       PlayCommand = "PlayNext"
	PlayCommandPlayLast       PlayCommand = "PlayLast"
	PlayCommandPlayInstantMix PlayCommand = "PlayInstantMix"
	PlayCommandPlayShuffle    PlayCommand = "PlayShuffle"
)

// PlayRequest asks a session to start playing a list of items.
type PlayRequest struct {
	ItemIDs             []string    `json:"item_ids" validate:"required,min=1"`
	StartPositionTicks  *int64      `json:"start_position_ticks,omitempty"`
	PlayCommand         PlayCommand `json:"play_command" validate:"required"`
	ControllingUserID   string      `json:"controlling_user_id,omitempty"`
	AudioStreamIndex    *int        `json:"audio_stream_index,omitempty"`
	SubtitleStreamIndex *int        `json:"subtitle_stream_index,omitempty"`
	MediaSourceID       string      `json:"media_source_id,omitempty"`
	StartIndex          *int        `json:"start_index,omitempty"`
}

// PlaystateCommand is a transport-level playback control verb.
type PlaystateCommand string

const (
	PlaystateCommandStop        PlaystateCommand = "Stop"
	PlaystateCommandPause       PlaystateCommand = "Pause"
	PlaystateCommandUnpause     PlaystateCommand = "Unpause"
	PlaystateCommandPlayPause   PlaystateCommand = "PlayPause"
	PlaystateCommandNextTrack   PlaystateCommand = "NextTrack"
	PlaystateCommandPrevTrack   PlaystateCommand = "PreviousTrack"
	PlaystateCommandSeek        PlaystateCommand = "Seek"
	PlaystateCommandRewind      PlaystateCommand = "Rewind"
	PlaystateCommandFastForward PlaystateCommand = "FastForward"
)

// PlaystateRequest carries a playstate verb to a session.
type PlaystateRequest struct {
	Command           PlaystateCommand `json:"command" validate:"required"`
	SeekPositionTicks *int64           `json:"seek_position_ticks,omitempty"`
	ControllingUserID string           `json:"controlling_user_id,omitempty"`
}

// General command names understood by clients. Message and browse commands
// are lowered onto these before dispatch.
const (
	GeneralCommandDisplayMessage = "DisplayMessage"
	GeneralCommandDisplayContent = "DisplayContent"
	GeneralCommandGoHome         = "GoHome"
	GeneralCommandSetVolume      = "SetVolume"
	GeneralCommandMute           = "Mute"
	GeneralCommandUnmute         = "Unmute"
	GeneralCommandToggleMute     = "ToggleMute"
)

// GeneralCommand is the generic named-command envelope sent to a controller.
type GeneralCommand struct {
	Name              string            `json:"name" validate:"required"`
	ControllingUserID string            `json:"controlling_user_id,omitempty"`
	Arguments         map[string]string `json:"arguments,omitempty"`
}

// MessageCommand displays a message on the target client.
type MessageCommand struct {
	Header    string `json:"header"`
	Text      string `json:"text" validate:"required"`
	TimeoutMs *int64 `json:"timeout_ms,omitempty"`
}

// BrowseRequest navigates the target client to an item.
type BrowseRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`
}
