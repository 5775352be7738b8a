// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package library

import (
	"context"
	"io"
	"testing"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/models"
	"github.com/sablecast/sable/internal/session"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var (
	_ session.LibraryManager     = (*Library)(nil)
	_ session.MusicManager       = (*Mixer)(nil)
	_ session.MediaSourceManager = (*MediaSources)(nil)
)

func num(n int) *int { return &n }

func TestGetItemByID(t *testing.T) {
	l := New()
	l.AddItem(&models.BaseItem{ID: "a", Name: "Item A"})

	item, err := l.GetItemByID(context.Background(), "a")
	if err != nil || item == nil || item.Name != "Item A" {
		t.Fatalf("item = %+v, err = %v", item, err)
	}

	missing, err := l.GetItemByID(context.Background(), "zzz")
	if err != nil || missing != nil {
		t.Errorf("missing item = %+v, err = %v", missing, err)
	}
}

func TestGetRecursiveChildren(t *testing.T) {
	l := New()
	root := &models.BaseItem{ID: "root", Kind: models.ItemKindFolder, IsFolder: true}
	sub := &models.BaseItem{ID: "sub", Kind: models.ItemKindFolder, IsFolder: true}
	l.AddItem(root)
	l.AddItem(sub)
	l.AddItem(&models.BaseItem{ID: "a", MediaType: "Audio"})
	l.AddItem(&models.BaseItem{ID: "b", MediaType: "Audio"})
	l.AddItem(&models.BaseItem{ID: "blocked", MediaType: "Audio", PlayAccess: models.PlayAccessNone})
	l.AddChild("root", "a")
	l.AddChild("root", "sub")
	l.AddChild("sub", "b")
	l.AddChild("sub", "blocked")

	children, err := l.GetRecursiveChildren(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("GetRecursiveChildren: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2 (a, b)", len(children))
	}
	if children[0].ID != "a" || children[1].ID != "b" {
		t.Errorf("children = [%s %s], want [a b]", children[0].ID, children[1].ID)
	}
}

func TestGetTaggedChildren(t *testing.T) {
	l := New()
	genre := &models.BaseItem{ID: "genre-jazz", Kind: models.ItemKindByName}
	l.AddItem(genre)
	l.AddItem(&models.BaseItem{ID: "a"})
	l.AddItem(&models.BaseItem{ID: "folder", IsFolder: true})
	l.AddChild("genre-jazz", "a")
	l.AddChild("genre-jazz", "folder")

	children, err := l.GetTaggedChildren(context.Background(), genre, nil)
	if err != nil {
		t.Fatalf("GetTaggedChildren: %v", err)
	}
	if len(children) != 1 || children[0].ID != "a" {
		t.Errorf("children = %+v, want only a", children)
	}
}

func TestGetEpisodesOrdering(t *testing.T) {
	l := New()
	add := func(id string, season, index int, virtual bool) {
		l.AddItem(&models.BaseItem{
			ID:            id,
			Kind:          models.ItemKindEpisode,
			SeriesID:      "series-1",
			SeasonNumber:  num(season),
			IndexNumber:   num(index),
			IsVirtualItem: virtual,
		})
	}
	add("s2e1", 2, 1, false)
	add("s1e2", 1, 2, false)
	add("s1e1", 1, 1, false)
	add("s2e2", 2, 2, true)
	l.AddItem(&models.BaseItem{ID: "other", Kind: models.ItemKindEpisode, SeriesID: "series-2"})

	episodes, err := l.GetEpisodes(context.Background(), "series-1", nil)
	if err != nil {
		t.Fatalf("GetEpisodes: %v", err)
	}

	wantOrder := []string{"s1e1", "s1e2", "s2e1", "s2e2"}
	if len(episodes) != len(wantOrder) {
		t.Fatalf("got %d episodes, want %d", len(episodes), len(wantOrder))
	}
	for i, want := range wantOrder {
		if episodes[i].ID != want {
			t.Errorf("episodes[%d] = %s, want %s", i, episodes[i].ID, want)
		}
	}
}

func TestGetPlayAccess(t *testing.T) {
	l := New()

	if got := l.GetPlayAccess(nil, &models.BaseItem{ID: "a"}); got != models.PlayAccessFull {
		t.Errorf("default access = %s, want Full", got)
	}
	blocked := &models.BaseItem{ID: "b", PlayAccess: models.PlayAccessNone}
	if got := l.GetPlayAccess(nil, blocked); got != models.PlayAccessNone {
		t.Errorf("blocked access = %s, want None", got)
	}
}

func TestInstantMix(t *testing.T) {
	l := New()
	l.AddItem(&models.BaseItem{ID: "seed", MediaType: "Audio"})
	l.AddItem(&models.BaseItem{ID: "m1", MediaType: "Audio"})
	l.AddItem(&models.BaseItem{ID: "m2", MediaType: "Audio"})

	mixer := NewMixer(l)
	mixer.SetMix("seed", "m1", "m2", "missing")

	mix, err := mixer.GetInstantMixFromItem(context.Background(), &models.BaseItem{ID: "seed"}, nil)
	if err != nil {
		t.Fatalf("GetInstantMixFromItem: %v", err)
	}
	if len(mix) != 2 || mix[0].ID != "m1" || mix[1].ID != "m2" {
		t.Errorf("mix = %+v, want [m1 m2]", mix)
	}

	empty, err := mixer.GetInstantMixFromItem(context.Background(), &models.BaseItem{ID: "unknown"}, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("unknown seed mix = %+v, err = %v", empty, err)
	}
}

func TestGetMediaSource(t *testing.T) {
	s := NewMediaSources()
	item := &models.BaseItem{ID: "item-1"}
	s.RegisterSource("item-1", &models.MediaSourceInfo{ID: "src-1"})
	s.RegisterSource("item-1", &models.MediaSourceInfo{ID: "src-2"})

	got, err := s.GetMediaSource(context.Background(), item, "src-2", "")
	if err != nil || got == nil || got.ID != "src-2" {
		t.Errorf("by id = %+v, err = %v", got, err)
	}

	got, err = s.GetMediaSource(context.Background(), item, "", "")
	if err != nil || got == nil || got.ID != "src-1" {
		t.Errorf("default = %+v, err = %v", got, err)
	}

	// The core falls back to the item id when no source id was reported.
	got, err = s.GetMediaSource(context.Background(), item, "item-1", "")
	if err != nil || got == nil || got.ID != "src-1" {
		t.Errorf("item-id fallback = %+v, err = %v", got, err)
	}

	got, err = s.GetMediaSource(context.Background(), item, "unknown", "")
	if err != nil || got != nil {
		t.Errorf("unknown source = %+v, err = %v", got, err)
	}

	got, err = s.GetMediaSource(context.Background(), &models.BaseItem{ID: "bare"}, "", "")
	if err != nil || got != nil {
		t.Errorf("unregistered item source = %+v, err = %v", got, err)
	}
}

func TestLiveStreams(t *testing.T) {
	s := NewMediaSources()
	s.OpenLiveStream("ls-1")

	if !s.IsLiveStreamOpen("ls-1") {
		t.Fatal("expected live stream open")
	}
	if err := s.CloseLiveStream(context.Background(), "ls-1"); err != nil {
		t.Fatalf("CloseLiveStream: %v", err)
	}
	if s.IsLiveStreamOpen("ls-1") {
		t.Error("live stream still open after close")
	}
	if err := s.CloseLiveStream(context.Background(), "ls-1"); err == nil {
		t.Error("expected error closing unopened stream")
	}
}

func TestImageTagger(t *testing.T) {
	tagger := NewImageTagger()

	tag1, err := tagger.GetImageCacheTag(&models.BaseItem{ID: "item-1"})
	if err != nil {
		t.Fatalf("GetImageCacheTag: %v", err)
	}
	if len(tag1) != 16 {
		t.Errorf("expected 16-char tag, got %q", tag1)
	}

	again, err := tagger.GetImageCacheTag(&models.BaseItem{ID: "item-1"})
	if err != nil || again != tag1 {
		t.Errorf("tag not stable: %q vs %q (err %v)", tag1, again, err)
	}

	tag2, err := tagger.GetImageCacheTag(&models.BaseItem{ID: "item-2"})
	if err != nil || tag2 == tag1 {
		t.Errorf("distinct items share tag %q (err %v)", tag2, err)
	}

	if _, err := tagger.GetImageCacheTag(nil); err == nil {
		t.Error("expected error for nil item")
	}
}
