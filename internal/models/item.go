// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

import "time"

// PlayAccess describes whether a user may play an item.
type PlayAccess string

const (
	PlayAccessFull PlayAccess = "Full"
	PlayAccessNone PlayAccess = "None"
)

// ItemKind tags the library item variants the session core distinguishes.
// Polymorphic library hierarchies are flattened into a small explicit
// capability set instead of deep inheritance.
type ItemKind string

const (
	ItemKindLeaf    ItemKind = "leaf"    // plain playable item
	ItemKindFolder  ItemKind = "folder"  // recursive container
	ItemKindByName  ItemKind = "by_name" // person, genre, studio, tag
	ItemKindEpisode ItemKind = "episode" // episode of a series
)

// BaseItem is the library-entity shape the session core consumes. It is
// produced by the LibraryManager collaborator; the core never mutates it.
type BaseItem struct {
	ID        string
	Name      string
	SortName  string
	MediaType string

	Kind          ItemKind
	IsFolder      bool
	IsVirtualItem bool

	RunTimeTicks *int64

	SupportsPlayedStatus bool
	SupportsMediaSources bool

	// Episode facet, set when Kind == ItemKindEpisode.
	SeriesID     string
	SeasonNumber *int
	IndexNumber  *int

	// Video items require completion before they are marked played.
	IsVideo bool

	PlayAccess PlayAccess
}

// IsByName reports whether the item is a by-name container (person, genre).
func (b *BaseItem) IsByName() bool {
	return b.Kind == ItemKindByName
}

// IsEpisode reports whether the item carries the episode facet.
func (b *BaseItem) IsEpisode() bool {
	return b.Kind == ItemKindEpisode
}

// MediaSourceInfo is the resolved media-source snapshot for an item.
type MediaSourceInfo struct {
	ID           string `json:"id"`
	Path         string `json:"path,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
	Container    string `json:"container,omitempty"`
	RunTimeTicks *int64 `json:"run_time_ticks,omitempty"`
	Bitrate      *int   `json:"bitrate,omitempty"`
	LiveStreamID string `json:"live_stream_id,omitempty"`
}

// BaseItemDTO is the now-playing snapshot attached to a session and shipped
// to controllers. RunTimeTicks prefers the media source's value when one was
// resolved.
type BaseItemDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MediaType     string `json:"media_type,omitempty"`
	SeriesID      string `json:"series_id,omitempty"`
	SeriesName    string `json:"series_name,omitempty"`
	RunTimeTicks  *int64 `json:"run_time_ticks,omitempty"`
	MediaSourceID string `json:"media_source_id,omitempty"`
	Container     string `json:"container,omitempty"`

	PremiereDate *time.Time `json:"premiere_date,omitempty"`
	ImageTag     string     `json:"image_tag,omitempty"`
}

// UserItemData is the per-user persisted playback bookkeeping for one item.
type UserItemData struct {
	Played                bool       `json:"played"`
	PlayCount             int        `json:"play_count"`
	PlaybackPositionTicks int64      `json:"playback_position_ticks"`
	LastPlayedDate        *time.Time `json:"last_played_date,omitempty"`
	AudioStreamIndex      *int       `json:"audio_stream_index,omitempty"`
	SubtitleStreamIndex   *int       `json:"subtitle_stream_index,omitempty"`
}

// UserDataSaveReason states why user-data is being persisted.
type UserDataSaveReason string

const (
	UserDataSaveReasonPlaybackStart    UserDataSaveReason = "PlaybackStart"
	UserDataSaveReasonPlaybackProgress UserDataSaveReason = "PlaybackProgress"
	UserDataSaveReasonPlaybackFinished UserDataSaveReason = "PlaybackFinished"
)
