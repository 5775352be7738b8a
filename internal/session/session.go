// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/models"
)

// SessionKey builds the case-insensitive registry key for (client, deviceId).
func SessionKey(client, deviceID string) string {
	return strings.ToLower(client + deviceID)
}

// SessionID derives the stable session identifier from the registry key.
// The digest is deterministic and non-cryptographic; it only needs to make
// collisions astronomically unlikely, not resist attackers.
func SessionID(client, deviceID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(SessionKey(client, deviceID)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Session is one live connection from one client app on one device. All
// mutable fields are guarded by mu; external readers receive point-in-time
// snapshots via Snapshot.
type Session struct {
	// Immutable identity, set at creation.
	id       string
	deviceID string
	client   string

	mu sync.Mutex

	deviceName         string
	applicationVersion string
	remoteEndPoint     string
	appIconURL         string

	userID          string
	userName        string
	additionalUsers []models.SessionUserInfo

	lastActivityDate    time.Time
	lastPlaybackCheckIn time.Time

	nowPlayingItem     *models.BaseItemDTO
	fullNowPlayingItem *models.BaseItem
	playState          models.PlayState
	transcodingInfo    *models.TranscodingInfo

	playableMediaTypes   []string
	supportedCommands    []string
	supportsMediaControl bool

	controller Controller

	// progressStop cancels the running auto-progress timer, nil when idle.
	progressStop chan struct{}

	disposed bool
}

// NewSession creates a session for the given identity tuple.
func NewSession(client, deviceID, deviceName, appVersion, remoteEndPoint string) *Session {
	return &Session{
		id:                 SessionID(client, deviceID),
		client:             client,
		deviceID:           deviceID,
		deviceName:         deviceName,
		applicationVersion: appVersion,
		remoteEndPoint:     remoteEndPoint,
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.id }

// DeviceID returns the device identifier.
func (s *Session) DeviceID() string { return s.deviceID }

// Client returns the client app name.
func (s *Session) Client() string { return s.client }

// UserID returns the primary user id, empty for anonymous sessions.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Controller returns the bound transport controller, nil when none is bound.
func (s *Session) Controller() Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

// BindController attaches a transport controller if none is bound yet.
func (s *Session) BindController(c Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		s.controller = c
	}
}

// IsActive reports whether a live controller is bound.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	c := s.controller
	s.mu.Unlock()
	return c != nil && c.IsSessionActive()
}

// SetUser refreshes the primary user association. Clearing the user also
// clears additional users: a session without a primary user cannot carry
// secondary ones.
func (s *Session) SetUser(userID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.userName = userName
	if userID == "" {
		s.additionalUsers = nil
	}
}

// RefreshIdentity updates the mutable identity fields on each activity
// report. Empty values leave the current value untouched.
func (s *Session) RefreshIdentity(deviceName, appVersion, remoteEndPoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deviceName != "" {
		s.deviceName = deviceName
	}
	if appVersion != "" {
		s.applicationVersion = appVersion
	}
	if remoteEndPoint != "" {
		s.remoteEndPoint = remoteEndPoint
	}
}

// SetDeviceName overrides the display name, used when the device registry
// reports a custom name.
func (s *Session) SetDeviceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceName = name
}

// AddAdditionalUser attaches a secondary user. The primary user and existing
// entries are not duplicated.
func (s *Session) AddAdditionalUser(userID, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return fmt.Errorf("%w: session has no primary user", ErrInvalidArgument)
	}
	if strings.EqualFold(s.userID, userID) {
		return fmt.Errorf("%w: user already is the primary session user", ErrInvalidArgument)
	}
	for _, u := range s.additionalUsers {
		if strings.EqualFold(u.UserID, userID) {
			return nil
		}
	}
	s.additionalUsers = append(s.additionalUsers, models.SessionUserInfo{UserID: userID, UserName: userName})
	return nil
}

// RemoveAdditionalUser detaches a secondary user if present.
func (s *Session) RemoveAdditionalUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.additionalUsers {
		if strings.EqualFold(u.UserID, userID) {
			s.additionalUsers = append(s.additionalUsers[:i], s.additionalUsers[i+1:]...)
			return
		}
	}
}

// UserIDs returns the primary user id followed by additional user ids.
func (s *Session) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return nil
	}
	ids := make([]string, 0, 1+len(s.additionalUsers))
	ids = append(ids, s.userID)
	for _, u := range s.additionalUsers {
		ids = append(ids, u.UserID)
	}
	return ids
}

// UpdateActivity advances lastActivityDate and returns the previous value.
// Activity is monotonic: an older timestamp never overwrites a newer one.
func (s *Session) UpdateActivity(at time.Time) (previous time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.lastActivityDate
	if at.After(s.lastActivityDate) {
		s.lastActivityDate = at
	}
	return previous
}

// LastActivity returns the current activity timestamp.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityDate
}

// TouchPlaybackCheckIn stamps the last real playback report. Automated
// progress must never call this; idle detection depends on it.
func (s *Session) TouchPlaybackCheckIn(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPlaybackCheckIn = at
}

// LastPlaybackCheckIn returns the last real playback report time.
func (s *Session) LastPlaybackCheckIn() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlaybackCheckIn
}

// ApplyCapabilities installs the client-declared capability set.
func (s *Session) ApplyCapabilities(caps *models.ClientCapabilities) {
	if caps == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playableMediaTypes = append([]string(nil), caps.PlayableMediaTypes...)
	s.supportedCommands = append([]string(nil), caps.SupportedCommands...)
	s.supportsMediaControl = caps.SupportsMediaControl
	if caps.IconURL != "" {
		s.appIconURL = caps.IconURL
	}
}

// PlayableMediaTypes returns the declared playable media types.
func (s *Session) PlayableMediaTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.playableMediaTypes...)
}

// NowPlaying returns the current playback snapshot pair. The full library
// entity is a cache for normalization and may be nil even while playing.
func (s *Session) NowPlaying() (*models.BaseItemDTO, *models.BaseItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowPlayingItem, s.fullNowPlayingItem
}

// SetNowPlaying installs the playing item pair.
func (s *Session) SetNowPlaying(dto *models.BaseItemDTO, full *models.BaseItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowPlayingItem = dto
	s.fullNowPlayingItem = full
}

// PlayStateSnapshot returns a copy of the current play state.
func (s *Session) PlayStateSnapshot() models.PlayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playState
}

// ApplyPlayState folds a playback report into the play state.
func (s *Session) ApplyPlayState(info *models.PlaybackProgressInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playState.IsPaused = info.IsPaused
	s.playState.PositionTicks = info.PositionTicks
	s.playState.MediaSourceID = info.MediaSourceID
	s.playState.CanSeek = info.CanSeek
	s.playState.IsMuted = info.IsMuted
	s.playState.VolumeLevel = info.VolumeLevel
	s.playState.AudioStreamIndex = info.AudioStreamIndex
	s.playState.SubtitleStreamIndex = info.SubtitleStreamIndex
	if info.PlayMethod != "" {
		s.playState.PlayMethod = info.PlayMethod
	}
	if info.RepeatMode != "" {
		s.playState.RepeatMode = info.RepeatMode
	}
}

// ClearPlayback resets the playback sub-state after a stop.
func (s *Session) ClearPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowPlayingItem = nil
	s.fullNowPlayingItem = nil
	s.playState = models.PlayState{}
	s.transcodingInfo = nil
}

// SetTranscodingInfo stores the transcoding snapshot.
func (s *Session) SetTranscodingInfo(info *models.TranscodingInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcodingInfo = info
}

// TranscodingInfo returns the transcoding snapshot. The getter holds the
// invariant that a session without a playing item reports no transcoding.
func (s *Session) TranscodingInfo() *models.TranscodingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nowPlayingItem == nil {
		return nil
	}
	return s.transcodingInfo
}

// StartAutomaticProgress starts the periodic automated progress reporter for
// the current playback. Any previous timer is cancelled first: a session has
// at most one auto-progress timer. Each tick synthesizes a progress report
// from the live play state and hands it to report with isAutomated semantics.
func (s *Session) StartAutomaticProgress(interval time.Duration, report func(info *models.PlaybackProgressInfo)) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if s.progressStop != nil {
		close(s.progressStop)
	}
	stop := make(chan struct{})
	s.progressStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				info := s.synthesizeProgress()
				if info == nil {
					continue
				}
				report(info)
			}
		}
	}()
}

// synthesizeProgress builds a progress report from the current state, or nil
// when nothing is playing.
func (s *Session) synthesizeProgress() *models.PlaybackProgressInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nowPlayingItem == nil {
		return nil
	}
	return &models.PlaybackProgressInfo{
		SessionID:           s.id,
		ItemID:              s.nowPlayingItem.ID,
		MediaSourceID:       s.playState.MediaSourceID,
		IsPaused:            s.playState.IsPaused,
		CanSeek:             s.playState.CanSeek,
		IsMuted:             s.playState.IsMuted,
		PositionTicks:       s.playState.PositionTicks,
		VolumeLevel:         s.playState.VolumeLevel,
		AudioStreamIndex:    s.playState.AudioStreamIndex,
		SubtitleStreamIndex: s.playState.SubtitleStreamIndex,
		PlayMethod:          s.playState.PlayMethod,
		RepeatMode:          s.playState.RepeatMode,
		Item:                s.nowPlayingItem,
	}
}

// StopAutomaticProgress cancels the auto-progress timer if one is running.
func (s *Session) StopAutomaticProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressStop != nil {
		close(s.progressStop)
		s.progressStop = nil
	}
}

// Snapshot returns a point-in-time copy of the session for API callers and
// event payloads.
func (s *Session) Snapshot() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := models.SessionInfo{
		ID:                 s.id,
		DeviceID:           s.deviceID,
		DeviceName:         s.deviceName,
		Client:             s.client,
		ApplicationVersion: s.applicationVersion,
		RemoteEndPoint:     s.remoteEndPoint,
		AppIconURL:         s.appIconURL,

		UserID:   s.userID,
		UserName: s.userName,

		LastActivityDate:    s.lastActivityDate,
		LastPlaybackCheckIn: s.lastPlaybackCheckIn,

		PlayableMediaTypes:   append([]string(nil), s.playableMediaTypes...),
		SupportedCommands:    append([]string(nil), s.supportedCommands...),
		SupportsMediaControl: s.supportsMediaControl,
	}
	info.AdditionalUsers = append([]models.SessionUserInfo(nil), s.additionalUsers...)

	if s.nowPlayingItem != nil {
		item := *s.nowPlayingItem
		info.NowPlayingItem = &item
		state := s.playState
		info.PlayState = &state
		if s.transcodingInfo != nil {
			ti := *s.transcodingInfo
			info.TranscodingInfo = &ti
		}
	}

	if s.controller != nil {
		info.IsActive = s.controller.IsSessionActive()
		info.SupportsRemoteControl = s.controller.SupportsMediaControl()
	}

	return info
}

// Dispose cancels the auto-progress timer and releases the controller. It is
// idempotent.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.progressStop != nil {
		close(s.progressStop)
		s.progressStop = nil
	}
	controller := s.controller
	s.controller = nil
	s.mu.Unlock()

	if d, ok := controller.(DisposableController); ok {
		if err := d.Dispose(); err != nil {
			logging.Error().Err(err).Str("session_id", s.id).Msg("failed to dispose session controller")
		}
	}
}
