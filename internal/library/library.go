// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package library holds the in-memory reference implementations of the
// library collaborator ports: item lookup, container expansion, episode
// ordering, instant mixes, and media-source resolution. Server deployments
// can swap these for a real catalog behind the same interfaces.
package library

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sablecast/sable/internal/models"
)

// Library is an in-memory item catalog.
type Library struct {
	mu       sync.RWMutex
	items    map[string]*models.BaseItem
	children map[string][]string
}

// New creates an empty catalog.
func New() *Library {
	return &Library{
		items:    make(map[string]*models.BaseItem),
		children: make(map[string][]string),
	}
}

// AddItem registers an item. Items are stored as given; the catalog never
// mutates them.
func (l *Library) AddItem(item *models.BaseItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.ID] = item
}

// AddChild links a child under a container (folder or by-name item).
// Insertion order is preserved.
func (l *Library) AddChild(parentID, childID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.children[parentID] = append(l.children[parentID], childID)
}

// GetItemByID returns nil when the item does not exist.
func (l *Library) GetItemByID(_ context.Context, id string) (*models.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[id], nil
}

// GetTaggedChildren returns the non-folder descendants linked under a
// by-name item that the user may play.
func (l *Library) GetTaggedChildren(_ context.Context, byName *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*models.BaseItem
	for _, id := range l.children[byName.ID] {
		item := l.items[id]
		if item == nil || item.IsFolder {
			continue
		}
		if l.playAccess(user, item) == models.PlayAccessFull {
			out = append(out, item)
		}
	}
	return out, nil
}

// GetRecursiveChildren returns the non-folder descendants of a folder,
// depth first, filtered to what the user may play.
func (l *Library) GetRecursiveChildren(_ context.Context, folder *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*models.BaseItem
	seen := make(map[string]bool)

	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, childID := range l.children[id] {
			child := l.items[childID]
			if child == nil {
				continue
			}
			if child.IsFolder {
				walk(child.ID)
				continue
			}
			if l.playAccess(user, child) == models.PlayAccessFull {
				out = append(out, child)
			}
		}
	}
	walk(folder.ID)

	return out, nil
}

// GetEpisodes returns the series' episodes ordered by season then episode
// number, virtual entries included.
func (l *Library) GetEpisodes(_ context.Context, seriesID string, _ *models.User) ([]*models.BaseItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*models.BaseItem
	for _, item := range l.items {
		if item.IsEpisode() && item.SeriesID == seriesID {
			out = append(out, item)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := numberOrMax(out[i].SeasonNumber), numberOrMax(out[j].SeasonNumber)
		if si != sj {
			return si < sj
		}
		return numberOrMax(out[i].IndexNumber) < numberOrMax(out[j].IndexNumber)
	})
	return out, nil
}

// GetPlayAccess reports the user's play permission for an item.
func (l *Library) GetPlayAccess(user *models.User, item *models.BaseItem) models.PlayAccess {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.playAccess(user, item)
}

// playAccess defaults unset item access to full. Callers hold l.mu.
func (l *Library) playAccess(_ *models.User, item *models.BaseItem) models.PlayAccess {
	if item.PlayAccess == models.PlayAccessNone {
		return models.PlayAccessNone
	}
	return models.PlayAccessFull
}

// numberOrMax sorts items without a number after numbered ones.
func numberOrMax(n *int) int {
	if n == nil {
		return int(^uint(0) >> 1)
	}
	return *n
}

// Mixer is the in-memory instant-mix provider. Mixes are registered per
// seed item.
type Mixer struct {
	mu      sync.RWMutex
	library *Library
	mixes   map[string][]string
}

// NewMixer creates a mixer over the catalog.
func NewMixer(library *Library) *Mixer {
	return &Mixer{
		library: library,
		mixes:   make(map[string][]string),
	}
}

// SetMix registers the mix generated for a seed item.
func (m *Mixer) SetMix(seedID string, itemIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mixes[seedID] = itemIDs
}

// GetInstantMixFromItem returns the registered mix for the seed, resolved
// against the catalog. Unknown seeds produce an empty mix.
func (m *Mixer) GetInstantMixFromItem(ctx context.Context, item *models.BaseItem, _ *models.User) ([]*models.BaseItem, error) {
	m.mu.RLock()
	ids := m.mixes[item.ID]
	m.mu.RUnlock()

	var out []*models.BaseItem
	for _, id := range ids {
		mixed, err := m.library.GetItemByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if mixed != nil {
			out = append(out, mixed)
		}
	}
	return out, nil
}

// MediaSources is the in-memory media-source resolver and live-stream
// registry.
type MediaSources struct {
	mu          sync.RWMutex
	sources     map[string][]*models.MediaSourceInfo
	liveStreams map[string]bool
}

// NewMediaSources creates an empty resolver.
func NewMediaSources() *MediaSources {
	return &MediaSources{
		sources:     make(map[string][]*models.MediaSourceInfo),
		liveStreams: make(map[string]bool),
	}
}

// RegisterSource attaches a media source to an item.
func (s *MediaSources) RegisterSource(itemID string, source *models.MediaSourceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[itemID] = append(s.sources[itemID], source)
}

// OpenLiveStream records a live stream as open.
func (s *MediaSources) OpenLiveStream(liveStreamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveStreams[liveStreamID] = true
}

// IsLiveStreamOpen reports whether the live stream is still open.
func (s *MediaSources) IsLiveStreamOpen(liveStreamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveStreams[liveStreamID]
}

// GetMediaSource resolves an item's media source. The id match wins; with
// no id the first registered source is returned. Nil when nothing matches.
func (s *MediaSources) GetMediaSource(_ context.Context, item *models.BaseItem, mediaSourceID, _ string) (*models.MediaSourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registered := s.sources[item.ID]
	if len(registered) == 0 {
		return nil, nil
	}
	if mediaSourceID == "" || mediaSourceID == item.ID {
		return registered[0], nil
	}
	for _, source := range registered {
		if source.ID == mediaSourceID {
			return source, nil
		}
	}
	return nil, nil
}

// CloseLiveStream marks a live stream closed.
func (s *MediaSources) CloseLiveStream(_ context.Context, liveStreamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.liveStreams[liveStreamID] {
		return fmt.Errorf("live stream %s is not open", liveStreamID)
	}
	delete(s.liveStreams, liveStreamID)
	return nil
}
