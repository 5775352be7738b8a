// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

// PlaybackStartInfo is the client report that playback began.
type PlaybackStartInfo struct {
	SessionID     string `json:"session_id" validate:"required"`
	ItemID        string `json:"item_id,omitempty"`
	MediaSourceID string `json:"media_source_id,omitempty"`
	LiveStreamID  string `json:"live_stream_id,omitempty"`

	IsPaused            bool       `json:"is_paused"`
	CanSeek             bool       `json:"can_seek"`
	IsMuted             bool       `json:"is_muted"`
	PositionTicks       *int64     `json:"position_ticks,omitempty"`
	VolumeLevel         *int       `json:"volume_level,omitempty" validate:"omitempty,min=0,max=100"`
	AudioStreamIndex    *int       `json:"audio_stream_index,omitempty"`
	SubtitleStreamIndex *int       `json:"subtitle_stream_index,omitempty"`
	PlayMethod          PlayMethod `json:"play_method,omitempty"`
	RepeatMode          RepeatMode `json:"repeat_mode,omitempty"`

	// Item is the pre-built snapshot, when the client or a prior layer
	// already resolved it. Left nil for the core to populate.
	Item *BaseItemDTO `json:"item,omitempty"`
}

// PlaybackProgressInfo is a periodic position report. It shares the shape of
// the start report; automated reports are synthesized by the session's
// auto-progress timer and never advance the check-in clock.
type PlaybackProgressInfo = PlaybackStartInfo

// PlaybackStopInfo is the client report that playback ended.
type PlaybackStopInfo struct {
	SessionID     string `json:"session_id" validate:"required"`
	ItemID        string `json:"item_id,omitempty"`
	MediaSourceID string `json:"media_source_id,omitempty"`
	LiveStreamID  string `json:"live_stream_id,omitempty"`

	PositionTicks *int64 `json:"position_ticks,omitempty"`
	Failed        bool   `json:"failed"`

	Item *BaseItemDTO `json:"item,omitempty"`
}

// PlaybackStopped couples a stop report with the completion outcome computed
// while persisting user data. It is the payload of the playback.stopped event.
type PlaybackStopped struct {
	Stop               PlaybackStopInfo `json:"stop"`
	PlayedToCompletion bool             `json:"played_to_completion"`
	Session            SessionInfo      `json:"session"`
}

// PlaybackEvent is the payload of playback.start and playback.progress
// events.
type PlaybackEvent struct {
	Session       SessionInfo  `json:"session"`
	Item          *BaseItemDTO `json:"item,omitempty"`
	MediaSourceID string       `json:"media_source_id,omitempty"`
	PositionTicks *int64       `json:"position_ticks,omitempty"`
	IsPaused      bool         `json:"is_paused"`
	IsAutomated   bool         `json:"is_automated"`
}
