// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package models defines the wire-level and snapshot types shared across the
// session core: session snapshots, play state, playback reports, remote
// commands, capabilities, and authentication records.
//
// Live mutable state (the session entity itself) lives in internal/session;
// everything here is plain data safe to marshal and hand to transports.
package models

import "time"

// PlayMethod describes how the client receives the media stream.
type PlayMethod string

const (
	PlayMethodDirectPlay   PlayMethod = "DirectPlay"
	PlayMethodDirectStream PlayMethod = "DirectStream"
	PlayMethodTranscode    PlayMethod = "Transcode"
)

// RepeatMode describes the client's queue repeat behavior.
type RepeatMode string

const (
	RepeatModeNone RepeatMode = "RepeatNone"
	RepeatModeAll  RepeatMode = "RepeatAll"
	RepeatModeOne  RepeatMode = "RepeatOne"
)

// PlayState is the mutable playback sub-state of a session.
// Position is expressed in 100-nanosecond ticks.
type PlayState struct {
	IsPaused            bool       `json:"is_paused"`
	PositionTicks       *int64     `json:"position_ticks,omitempty"`
	MediaSourceID       string     `json:"media_source_id,omitempty"`
	CanSeek             bool       `json:"can_seek"`
	IsMuted             bool       `json:"is_muted"`
	VolumeLevel         *int       `json:"volume_level,omitempty"`
	AudioStreamIndex    *int       `json:"audio_stream_index,omitempty"`
	SubtitleStreamIndex *int       `json:"subtitle_stream_index,omitempty"`
	PlayMethod          PlayMethod `json:"play_method,omitempty"`
	RepeatMode          RepeatMode `json:"repeat_mode,omitempty"`
}

// SessionUserInfo identifies an additional user attached to a session.
type SessionUserInfo struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// TranscodingInfo is an opaque snapshot owned by the transcoding subsystem.
// The session core only stores and clears it.
type TranscodingInfo struct {
	AudioCodec      string   `json:"audio_codec,omitempty"`
	VideoCodec      string   `json:"video_codec,omitempty"`
	Container       string   `json:"container,omitempty"`
	IsVideoDirect   bool     `json:"is_video_direct"`
	IsAudioDirect   bool     `json:"is_audio_direct"`
	Bitrate         *int     `json:"bitrate,omitempty"`
	CompletionRate  *float64 `json:"completion_rate,omitempty"`
	TranscodeReason []string `json:"transcode_reason,omitempty"`
}

// ClientCapabilities is the feature set a client declares for its session.
type ClientCapabilities struct {
	PlayableMediaTypes           []string `json:"playable_media_types,omitempty"`
	SupportedCommands            []string `json:"supported_commands,omitempty"`
	SupportsMediaControl         bool     `json:"supports_media_control"`
	MessageCallbackURL           string   `json:"message_callback_url,omitempty"`
	IconURL                      string   `json:"icon_url,omitempty"`
	SupportsPersistentIdentifier bool     `json:"supports_persistent_identifier"`
	DeviceProfile                any      `json:"device_profile,omitempty"`
}

// SessionInfo is a point-in-time snapshot of a live session, as returned to
// API callers and carried in events. It never aliases the live entity's
// mutable state.
type SessionInfo struct {
	ID                 string `json:"id"`
	DeviceID           string `json:"device_id"`
	DeviceName         string `json:"device_name"`
	Client             string `json:"client"`
	ApplicationVersion string `json:"application_version"`
	RemoteEndPoint     string `json:"remote_end_point,omitempty"`
	AppIconURL         string `json:"app_icon_url,omitempty"`

	UserID          string            `json:"user_id,omitempty"`
	UserName        string            `json:"user_name,omitempty"`
	AdditionalUsers []SessionUserInfo `json:"additional_users,omitempty"`

	LastActivityDate    time.Time `json:"last_activity_date"`
	LastPlaybackCheckIn time.Time `json:"last_playback_check_in"`

	NowPlayingItem  *BaseItemDTO     `json:"now_playing_item,omitempty"`
	PlayState       *PlayState       `json:"play_state,omitempty"`
	TranscodingInfo *TranscodingInfo `json:"transcoding_info,omitempty"`

	PlayableMediaTypes    []string `json:"playable_media_types,omitempty"`
	SupportedCommands     []string `json:"supported_commands,omitempty"`
	SupportsMediaControl  bool     `json:"supports_media_control"`
	SupportsRemoteControl bool     `json:"supports_remote_control"`

	IsActive bool `json:"is_active"`
}
