// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"sync"
	"time"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// idleSweeper is the single process-wide timer that terminates stalled
// playback. It runs while at least one session is playing and synthesizes a
// stop for every session whose last real check-in is older than the idle
// timeout. Idle playback termination never destroys the session itself.
type idleSweeper struct {
	manager *Manager

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

func newIdleSweeper(m *Manager) *idleSweeper {
	return &idleSweeper{manager: m}
}

// Arm starts the sweep loop if it is not already running. Playback start and
// progress call this on every report.
func (s *idleSweeper) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	go s.run(s.stop)
}

// Stop halts the sweep loop.
func (s *idleSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
}

func (s *idleSweeper) run(stop chan struct{}) {
	ticker := time.NewTicker(s.manager.cfg.IdleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.sweep() {
				// Nothing is playing anymore; disarm until the next
				// playback report re-arms.
				s.mu.Lock()
				if s.stop == stop {
					s.running = false
				}
				s.mu.Unlock()
				return
			}
		}
	}
}

// sweep terminates stalled playback and reports whether any session is still
// playing afterwards.
func (s *idleSweeper) sweep() bool {
	m := s.manager
	now := m.deps.Clock.Now()

	var playing []*Session
	for _, sess := range m.registry.Snapshot() {
		if item, _ := sess.NowPlaying(); item != nil {
			playing = append(playing, sess)
		}
	}

	for _, sess := range playing {
		if now.Sub(sess.LastPlaybackCheckIn()) <= m.cfg.IdleTimeout {
			continue
		}

		info := s.synthesizeStop(sess)
		logging.Info().
			Str("session_id", sess.ID()).
			Time("last_check_in", sess.LastPlaybackCheckIn()).
			Msg("terminating idle playback")

		if err := m.OnPlaybackStopped(context.Background(), info); err != nil {
			logging.Error().Err(err).Str("session_id", sess.ID()).Msg("idle playback termination failed")
		} else {
			metrics.SessionsIdleSweptTotal.Inc()
		}
	}

	for _, sess := range m.registry.Snapshot() {
		if item, _ := sess.NowPlaying(); item != nil {
			return true
		}
	}
	return false
}

// synthesizeStop builds a stop report from the session's current state. No
// position is reported, so the stop counts as played to completion.
func (s *idleSweeper) synthesizeStop(sess *Session) *models.PlaybackStopInfo {
	item, _ := sess.NowPlaying()
	state := sess.PlayStateSnapshot()

	info := &models.PlaybackStopInfo{
		SessionID:     sess.ID(),
		MediaSourceID: state.MediaSourceID,
	}
	if item != nil {
		info.ItemID = item.ID
		info.Item = item
	}
	return info
}
