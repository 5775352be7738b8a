// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package users

import (
	"context"
	"sync"
	"time"

	"github.com/sablecast/sable/internal/models"
)

// Resume thresholds as a percentage of the item's runtime. Below the
// minimum the position resets to the start; above the maximum the play
// counts as finished.
const (
	minResumePercent = 5
	maxResumePercent = 90
)

// UserDataStore is the in-memory per-user playback bookkeeping store.
type UserDataStore struct {
	mu sync.RWMutex

	// rows is keyed by user id, then item id.
	rows map[string]map[string]models.UserItemData
}

// NewUserDataStore creates an empty store.
func NewUserDataStore() *UserDataStore {
	return &UserDataStore{rows: make(map[string]map[string]models.UserItemData)}
}

// GetUserData returns the stored record for (user, item), never nil.
func (s *UserDataStore) GetUserData(_ context.Context, userID string, item *models.BaseItem) (*models.UserItemData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byItem, ok := s.rows[userID]; ok {
		if data, ok := byItem[item.ID]; ok {
			out := data
			return &out, nil
		}
	}
	return &models.UserItemData{}, nil
}

// UpdatePlayState applies a position to the record and reports whether the
// play counts as finished. Items without a runtime cannot be resumed: the
// position resets, and only non-video items count as finished.
func (s *UserDataStore) UpdatePlayState(item *models.BaseItem, data *models.UserItemData, positionTicks int64) bool {
	finished := false

	if item.RunTimeTicks != nil && *item.RunTimeTicks > 0 {
		pct := 100 * float64(positionTicks) / float64(*item.RunTimeTicks)
		switch {
		case pct >= maxResumePercent:
			finished = true
			positionTicks = 0
		case pct < minResumePercent:
			positionTicks = 0
		}
	} else {
		positionTicks = 0
		finished = !item.IsVideo
	}

	data.PlaybackPositionTicks = positionTicks
	if finished && item.SupportsPlayedStatus {
		data.Played = true
		data.PlayCount++
		now := time.Now().UTC()
		data.LastPlayedDate = &now
	}
	return finished
}

// SaveUserData persists the record.
func (s *UserDataStore) SaveUserData(_ context.Context, userID string, item *models.BaseItem, data *models.UserItemData, _ models.UserDataSaveReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byItem, ok := s.rows[userID]
	if !ok {
		byItem = make(map[string]models.UserItemData)
		s.rows[userID] = byItem
	}
	byItem[item.ID] = *data
	return nil
}
