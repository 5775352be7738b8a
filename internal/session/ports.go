// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"time"

	"github.com/sablecast/sable/internal/models"
)

// UserManager resolves and authenticates users. The session core never owns
// user records; it reads snapshots and reports activity.
type UserManager interface {
	// Users returns a snapshot of all known users.
	Users(ctx context.Context) ([]*models.User, error)

	// GetUserByID returns nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByName resolves a user by case-insensitive name. Returns nil
	// when no user matches.
	GetUserByName(ctx context.Context, name string) (*models.User, error)

	// AuthenticateUser verifies credentials. A nil user with nil error means
	// the credentials were rejected.
	AuthenticateUser(ctx context.Context, username, password, passwordSha1, passwordMd5, remoteEndPoint string, isApp bool) (*models.User, error)

	// UpdateUser persists a mutated user snapshot.
	UpdateUser(ctx context.Context, user *models.User) error

	// GetUserDto builds the outward user snapshot for the given endpoint.
	GetUserDto(user *models.User, remoteEndPoint string) *models.UserDTO
}

// UserDataManager persists per-user playback bookkeeping.
type UserDataManager interface {
	// GetUserData returns the stored record for (user, item), never nil.
	GetUserData(ctx context.Context, userID string, item *models.BaseItem) (*models.UserItemData, error)

	// UpdatePlayState applies a position to the record and reports whether
	// the item was played to completion under the configured rule.
	UpdatePlayState(item *models.BaseItem, data *models.UserItemData, positionTicks int64) bool

	// SaveUserData persists the record with the given reason.
	SaveUserData(ctx context.Context, userID string, item *models.BaseItem, data *models.UserItemData, reason models.UserDataSaveReason) error
}

// LibraryManager looks up library entities.
type LibraryManager interface {
	// GetItemByID returns nil when the item does not exist.
	GetItemByID(ctx context.Context, id string) (*models.BaseItem, error)

	// GetTaggedChildren returns the non-folder descendants carrying a
	// by-name tag (person, genre, studio) for the given user.
	GetTaggedChildren(ctx context.Context, byName *models.BaseItem, user *models.User) ([]*models.BaseItem, error)

	// GetRecursiveChildren returns the non-folder descendants of a folder
	// for the given user.
	GetRecursiveChildren(ctx context.Context, folder *models.BaseItem, user *models.User) ([]*models.BaseItem, error)

	// GetEpisodes returns the ordered episode list of a series for the
	// given user, including virtual (missing or future) entries.
	GetEpisodes(ctx context.Context, seriesID string, user *models.User) ([]*models.BaseItem, error)

	// GetPlayAccess reports the user's play permission for an item.
	GetPlayAccess(user *models.User, item *models.BaseItem) models.PlayAccess
}

// MusicManager builds instant mixes from a seed item.
type MusicManager interface {
	GetInstantMixFromItem(ctx context.Context, item *models.BaseItem, user *models.User) ([]*models.BaseItem, error)
}

// MediaSourceManager resolves media sources and manages live streams.
type MediaSourceManager interface {
	// GetMediaSource returns nil when no source matches.
	GetMediaSource(ctx context.Context, item *models.BaseItem, mediaSourceID, liveStreamID string) (*models.MediaSourceInfo, error)

	CloseLiveStream(ctx context.Context, liveStreamID string) error
}

// DeviceManager is the external device registry.
type DeviceManager interface {
	RegisterDevice(ctx context.Context, id, name, appName, appVersion, userID string) error

	// GetDevice returns nil when the device is unknown.
	GetDevice(ctx context.Context, id string) (*models.DeviceInfo, error)

	CanAccessDevice(user *models.User, deviceID string) bool

	// GetCapabilities returns nil when none were saved.
	GetCapabilities(ctx context.Context, deviceID string) (*models.ClientCapabilities, error)

	SaveCapabilities(ctx context.Context, deviceID string, caps *models.ClientCapabilities) error
}

// AuthenticationRepository persists access-token rows.
type AuthenticationRepository interface {
	Get(ctx context.Context, query models.AuthenticationInfoQuery) (*models.QueryResult[*models.AuthenticationInfo], error)
	Create(ctx context.Context, info *models.AuthenticationInfo) error
	Update(ctx context.Context, info *models.AuthenticationInfo) error
}

// ImageProcessor resolves client-visible image tags for item snapshots.
// Failures are logged and swallowed; snapshots ship without tags.
type ImageProcessor interface {
	GetImageCacheTag(item *models.BaseItem) (string, error)
}

// EventPublisher receives the events the core emits. The watermill-backed
// bus in internal/events implements it; tests substitute a recorder.
type EventPublisher interface {
	PublishAuthenticationSucceeded(result *models.AuthenticationResult)
	PublishAuthenticationFailed(request *models.AuthenticationRequest)
	PublishSessionStarted(info models.SessionInfo)
	PublishSessionEnded(info models.SessionInfo)
	PublishSessionActivity(info models.SessionInfo)
	PublishCapabilitiesChanged(info models.SessionInfo)
	PublishPlaybackStart(event *models.PlaybackEvent)
	PublishPlaybackProgress(event *models.PlaybackEvent)
	PublishPlaybackStopped(event *models.PlaybackStopped)
}

// Clock abstracts wall-clock reads so idle detection and activity stamping
// are testable. Production wiring uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
