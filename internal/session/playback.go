// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// OnPlaybackStart records that a session began playing an item: the
// now-playing snapshot is attached, the auto-progress timer starts, play
// counts are persisted for every associated user, and the start is announced
// to listeners and remote controllers.
func (m *Manager) OnPlaybackStart(ctx context.Context, info *models.PlaybackStartInfo) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: playback start info is nil", ErrInvalidArgument)
	}

	sess := m.registry.BySessionID(info.SessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, info.SessionID)
	}

	libItem := m.resolveItem(ctx, info.ItemID)
	m.updateNowPlayingItem(ctx, sess, info, libItem)

	// Transcoding info from a previous play method is stale unless this
	// playback transcodes too.
	if info.PlayMethod != models.PlayMethodTranscode {
		sess.SetTranscodingInfo(nil)
	}

	sess.ApplyPlayState(info)

	now := m.deps.Clock.Now()
	sess.TouchPlaybackCheckIn(now)
	sess.UpdateActivity(now)

	sess.StartAutomaticProgress(m.cfg.AutoProgressInterval, func(progress *models.PlaybackProgressInfo) {
		if err := m.OnPlaybackProgress(context.Background(), progress, true); err != nil {
			logging.Debug().Err(err).Str("session_id", progress.SessionID).Msg("automated progress report failed")
		}
	})

	if libItem != nil {
		for _, userID := range sess.UserIDs() {
			m.recordPlaybackStart(ctx, userID, libItem)
		}
	}

	metrics.PlaybackEventsTotal.WithLabelValues("start").Inc()
	snapshot := sess.Snapshot()
	m.deps.Events.PublishPlaybackStart(&models.PlaybackEvent{
		Session:       snapshot,
		Item:          snapshot.NowPlayingItem,
		MediaSourceID: info.MediaSourceID,
		PositionTicks: info.PositionTicks,
		IsPaused:      info.IsPaused,
	})

	m.fanOut(ctx, "playback start", func(fanCtx context.Context, c Controller) error {
		return c.SendPlaybackStartNotification(fanCtx, snapshot)
	})

	m.sweeper.Arm()
	return nil
}

// recordPlaybackStart bumps the user's play bookkeeping for the item.
// Videos are only marked played on completion; everything else that supports
// played status is marked immediately.
func (m *Manager) recordPlaybackStart(ctx context.Context, userID string, item *models.BaseItem) {
	data, err := m.deps.UserDataManager.GetUserData(ctx, userID, item)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to load user data")
		return
	}

	now := m.deps.Clock.Now()
	data.PlayCount++
	data.LastPlayedDate = &now
	if item.SupportsPlayedStatus && !item.IsVideo {
		data.Played = true
	}

	if err := m.deps.UserDataManager.SaveUserData(ctx, userID, item, data, models.UserDataSaveReasonPlaybackStart); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to save user data")
	}
}

// OnPlaybackProgress folds a position report into the session. Automated
// reports come from the session's own timer and keep the server's view fresh
// without advancing the check-in clock; only real client reports do that.
func (m *Manager) OnPlaybackProgress(ctx context.Context, info *models.PlaybackProgressInfo, isAutomated bool) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: playback progress info is nil", ErrInvalidArgument)
	}

	sess := m.registry.BySessionID(info.SessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, info.SessionID)
	}

	libItem := m.resolveItem(ctx, info.ItemID)
	m.updateNowPlayingItem(ctx, sess, info, libItem)
	sess.ApplyPlayState(info)

	now := m.deps.Clock.Now()
	sess.UpdateActivity(now)
	if !isAutomated {
		sess.TouchPlaybackCheckIn(now)
	}

	if libItem != nil && info.PositionTicks != nil {
		for _, userID := range sess.UserIDs() {
			m.recordPlaybackProgress(ctx, userID, libItem, info)
		}
	}

	metrics.PlaybackEventsTotal.WithLabelValues("progress").Inc()
	snapshot := sess.Snapshot()
	m.deps.Events.PublishPlaybackProgress(&models.PlaybackEvent{
		Session:       snapshot,
		Item:          snapshot.NowPlayingItem,
		MediaSourceID: info.MediaSourceID,
		PositionTicks: info.PositionTicks,
		IsPaused:      info.IsPaused,
		IsAutomated:   isAutomated,
	})

	// A real report restarts the automated reporter so its ticks stay
	// aligned with the client's cadence.
	if !isAutomated {
		sess.StartAutomaticProgress(m.cfg.AutoProgressInterval, func(progress *models.PlaybackProgressInfo) {
			if err := m.OnPlaybackProgress(context.Background(), progress, true); err != nil {
				logging.Debug().Err(err).Str("session_id", progress.SessionID).Msg("automated progress report failed")
			}
		})
	}

	m.sweeper.Arm()
	return nil
}

// recordPlaybackProgress persists the user's position and, per their
// configuration, remembers or forgets the selected streams.
func (m *Manager) recordPlaybackProgress(ctx context.Context, userID string, item *models.BaseItem, info *models.PlaybackProgressInfo) {
	data, err := m.deps.UserDataManager.GetUserData(ctx, userID, item)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to load user data")
		return
	}

	m.deps.UserDataManager.UpdatePlayState(item, data, *info.PositionTicks)

	if user, err := m.deps.UserManager.GetUserByID(ctx, userID); err == nil && user != nil {
		if user.Configuration.RememberAudioSelections {
			data.AudioStreamIndex = info.AudioStreamIndex
		} else {
			data.AudioStreamIndex = nil
		}
		if user.Configuration.RememberSubtitleSelections {
			data.SubtitleStreamIndex = info.SubtitleStreamIndex
		} else {
			data.SubtitleStreamIndex = nil
		}
	}

	if err := m.deps.UserDataManager.SaveUserData(ctx, userID, item, data, models.UserDataSaveReasonPlaybackProgress); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to save user data")
	}
}

// OnPlaybackStopped ends the session's playback: the auto-progress timer
// stops, completion is computed and persisted per user, the live stream is
// closed if one was open, and the stop is announced.
func (m *Manager) OnPlaybackStopped(ctx context.Context, info *models.PlaybackStopInfo) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: playback stop info is nil", ErrInvalidArgument)
	}
	if info.PositionTicks != nil && *info.PositionTicks < 0 {
		return fmt.Errorf("%w: position ticks must not be negative", ErrInvalidArgument)
	}

	sess := m.registry.BySessionID(info.SessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, info.SessionID)
	}

	sess.StopAutomaticProgress()

	libItem := m.resolveItem(ctx, info.ItemID)
	if info.MediaSourceID == "" {
		info.MediaSourceID = info.ItemID
	}

	// Fill the stop report's item from what the session was playing so
	// listeners always see what actually stopped.
	if info.Item == nil {
		if current, _ := sess.NowPlaying(); current != nil {
			info.Item = current
		} else if libItem != nil {
			info.Item = m.buildItemSnapshot(ctx, libItem, nil, info.MediaSourceID)
		}
	}

	positionMs := "unknown"
	if info.PositionTicks != nil {
		positionMs = strconv.FormatInt(*info.PositionTicks/10_000, 10)
	}
	logging.Info().
		Str("session_id", sess.ID()).
		Str("item_id", info.ItemID).
		Str("position_ms", positionMs).
		Msg("playback stopped")

	sess.ClearPlayback()
	sess.UpdateActivity(m.deps.Clock.Now())

	playedToCompletion := true
	if libItem != nil {
		for _, userID := range sess.UserIDs() {
			playedToCompletion = m.recordPlaybackStopped(ctx, userID, libItem, info.PositionTicks)
		}
	}

	if info.LiveStreamID != "" {
		if err := m.deps.MediaSourceManager.CloseLiveStream(ctx, info.LiveStreamID); err != nil {
			logging.Error().Err(err).Str("live_stream_id", info.LiveStreamID).Msg("failed to close live stream")
		}
	}

	metrics.PlaybackEventsTotal.WithLabelValues("stop").Inc()
	snapshot := sess.Snapshot()
	m.deps.Events.PublishPlaybackStopped(&models.PlaybackStopped{
		Stop:               *info,
		PlayedToCompletion: playedToCompletion,
		Session:            snapshot,
	})

	m.fanOut(ctx, "playback stopped", func(fanCtx context.Context, c Controller) error {
		return c.SendPlaybackStoppedNotification(fanCtx, snapshot)
	})

	return nil
}

// recordPlaybackStopped persists the final position. A stop without a
// position is assumed complete: the play counts as finished wherever the
// item supports played status.
func (m *Manager) recordPlaybackStopped(ctx context.Context, userID string, item *models.BaseItem, positionTicks *int64) bool {
	data, err := m.deps.UserDataManager.GetUserData(ctx, userID, item)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to load user data")
		return false
	}

	playedToCompletion := true
	if positionTicks != nil {
		playedToCompletion = m.deps.UserDataManager.UpdatePlayState(item, data, *positionTicks)
	} else {
		data.Played = item.SupportsPlayedStatus
		data.PlaybackPositionTicks = 0
		data.PlayCount++
	}

	if err := m.deps.UserDataManager.SaveUserData(ctx, userID, item, data, models.UserDataSaveReasonPlaybackFinished); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("item_id", item.ID).Msg("failed to save user data")
	}
	return playedToCompletion
}

// resolveItem looks up an item, returning nil for empty ids and misses.
func (m *Manager) resolveItem(ctx context.Context, itemID string) *models.BaseItem {
	if itemID == "" {
		return nil
	}
	item, err := m.deps.LibraryManager.GetItemByID(ctx, itemID)
	if err != nil {
		logging.Error().Err(err).Str("item_id", itemID).Msg("failed to resolve library item")
		return nil
	}
	return item
}

// updateNowPlayingItem normalizes the report and attaches the now-playing
// snapshot. When the session already plays the same item the existing
// snapshot is reused instead of re-resolving the media source.
func (m *Manager) updateNowPlayingItem(ctx context.Context, sess *Session, info *models.PlaybackProgressInfo, libItem *models.BaseItem) {
	if info.MediaSourceID == "" {
		info.MediaSourceID = info.ItemID
	}

	if info.Item == nil && libItem != nil {
		current, _ := sess.NowPlaying()
		if current != nil && current.ID == info.ItemID {
			info.Item = current
		} else {
			var source *models.MediaSourceInfo
			if libItem.SupportsMediaSources {
				var err error
				source, err = m.deps.MediaSourceManager.GetMediaSource(ctx, libItem, info.MediaSourceID, info.LiveStreamID)
				if err != nil {
					logging.Error().Err(err).Str("item_id", libItem.ID).Msg("failed to resolve media source")
				}
			}
			info.Item = m.buildItemSnapshot(ctx, libItem, source, info.MediaSourceID)
		}
	}

	sess.SetNowPlaying(info.Item, libItem)
}

// buildItemSnapshot converts a library item into the DTO attached to the
// session. The runtime prefers the resolved media source over the item.
func (m *Manager) buildItemSnapshot(ctx context.Context, item *models.BaseItem, source *models.MediaSourceInfo, mediaSourceID string) *models.BaseItemDTO {
	dto := &models.BaseItemDTO{
		ID:            item.ID,
		Name:          item.Name,
		MediaType:     item.MediaType,
		MediaSourceID: mediaSourceID,
		RunTimeTicks:  item.RunTimeTicks,
	}
	if item.IsEpisode() {
		dto.SeriesID = item.SeriesID
	}
	if source != nil {
		dto.Container = source.Container
		if source.RunTimeTicks != nil {
			dto.RunTimeTicks = source.RunTimeTicks
		}
	}
	if m.deps.ImageProcessor != nil {
		if tag, err := m.deps.ImageProcessor.GetImageCacheTag(item); err != nil {
			logging.Error().Err(err).Str("item_id", item.ID).Msg("failed to resolve image tag")
		} else {
			dto.ImageTag = tag
		}
	}
	return dto
}
