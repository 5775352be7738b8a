// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sablecast/sable/internal/models"
)

func controlFixture(t *testing.T) (*fixture, *Session, *Session) {
	t.Helper()
	f := newFixture(t, Config{AutoProgressInterval: time.Hour})
	controllingUser := f.users.add(&models.User{ID: "ctrl-user", Name: "alice"}, "")
	controlling := f.userSession("Sable Web", "device-ctrl", controllingUser)
	target := f.session("Sable TV", "device-target")
	target.ApplyCapabilities(&models.ClientCapabilities{PlayableMediaTypes: []string{"Audio", "Video"}})
	return f, controlling, target
}

func TestSendGeneralCommandRoutesToTarget(t *testing.T) {
	f, controlling, target := controlFixture(t)

	err := f.manager.SendGeneralCommand(context.Background(), controlling.ID(), target.ID(), &models.GeneralCommand{
		Name:      models.GeneralCommandSetVolume,
		Arguments: map[string]string{"Volume": "40"},
	})
	if err != nil {
		t.Fatalf("SendGeneralCommand: %v", err)
	}

	got := f.controller(target).generalCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d commands, want 1", len(got))
	}
	if got[0].Name != models.GeneralCommandSetVolume {
		t.Errorf("Name = %s", got[0].Name)
	}
	if got[0].ControllingUserID != "ctrl-user" {
		t.Errorf("ControllingUserID = %s, want ctrl-user", got[0].ControllingUserID)
	}
	if len(f.controller(controlling).generalCommands()) != 0 {
		t.Error("command leaked to the controlling session")
	}
}

func TestSendGeneralCommandWithoutControllingSession(t *testing.T) {
	f, _, target := controlFixture(t)

	// Server-initiated commands have no controlling session and skip the
	// control policy entirely.
	err := f.manager.SendGeneralCommand(context.Background(), "", target.ID(), &models.GeneralCommand{
		Name: models.GeneralCommandGoHome,
	})
	if err != nil {
		t.Fatalf("SendGeneralCommand: %v", err)
	}
	got := f.controller(target).generalCommands()
	if len(got) != 1 || got[0].ControllingUserID != "" {
		t.Errorf("commands = %+v", got)
	}
}

func TestSendGeneralCommandErrors(t *testing.T) {
	f, controlling, target := controlFixture(t)
	ctx := context.Background()
	cmd := &models.GeneralCommand{Name: models.GeneralCommandGoHome}

	if err := f.manager.SendGeneralCommand(ctx, controlling.ID(), "ghost", cmd); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown target: err = %v, want ErrSessionNotFound", err)
	}
	if err := f.manager.SendGeneralCommand(ctx, "ghost", target.ID(), cmd); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown controlling session: err = %v, want ErrSessionNotFound", err)
	}

	f.mu.Lock()
	f.noController["device-mute"] = true
	f.mu.Unlock()
	mute := f.session("Sable Cast", "device-mute")
	if err := f.manager.SendGeneralCommand(ctx, controlling.ID(), mute.ID(), cmd); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("target without controller: err = %v, want ErrInvalidArgument", err)
	}
}

func TestSendPlaystateCommand(t *testing.T) {
	f, controlling, target := controlFixture(t)

	err := f.manager.SendPlaystateCommand(context.Background(), controlling.ID(), target.ID(), &models.PlaystateRequest{
		Command:           models.PlaystateCommandSeek,
		SeekPositionTicks: ticks(5000),
	})
	if err != nil {
		t.Fatalf("SendPlaystateCommand: %v", err)
	}

	got := f.controller(target).playstateCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d playstate commands, want 1", len(got))
	}
	if got[0].Command != models.PlaystateCommandSeek || got[0].ControllingUserID != "ctrl-user" {
		t.Errorf("command = %+v", got[0])
	}
}

func TestSendMessageCommandLowersToDisplayMessage(t *testing.T) {
	f, controlling, target := controlFixture(t)

	err := f.manager.SendMessageCommand(context.Background(), controlling.ID(), target.ID(), &models.MessageCommand{
		Header:    "Server",
		Text:      "Restarting soon",
		TimeoutMs: ticks(5000),
	})
	if err != nil {
		t.Fatalf("SendMessageCommand: %v", err)
	}

	got := f.controller(target).generalCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d commands, want 1", len(got))
	}
	if got[0].Name != models.GeneralCommandDisplayMessage {
		t.Errorf("Name = %s, want DisplayMessage", got[0].Name)
	}
	if got[0].Arguments["Header"] != "Server" || got[0].Arguments["Text"] != "Restarting soon" {
		t.Errorf("Arguments = %v", got[0].Arguments)
	}
	if got[0].Arguments["TimeoutMs"] != "5000" {
		t.Errorf("TimeoutMs = %s, want 5000", got[0].Arguments["TimeoutMs"])
	}
}

func TestSendBrowseCommandLowersToDisplayContent(t *testing.T) {
	f, controlling, target := controlFixture(t)

	err := f.manager.SendBrowseCommand(context.Background(), controlling.ID(), target.ID(), &models.BrowseRequest{
		ItemID:   "item-9",
		ItemName: "The Album",
		ItemType: "MusicAlbum",
	})
	if err != nil {
		t.Fatalf("SendBrowseCommand: %v", err)
	}

	got := f.controller(target).generalCommands()
	if len(got) != 1 || got[0].Name != models.GeneralCommandDisplayContent {
		t.Fatalf("commands = %+v", got)
	}
	if got[0].Arguments["ItemId"] != "item-9" || got[0].Arguments["ItemType"] != "MusicAlbum" {
		t.Errorf("Arguments = %v", got[0].Arguments)
	}
}

func TestSendPlayCommandLeafPassthrough(t *testing.T) {
	f, controlling, target := controlFixture(t)
	song := addSong(f, "song-1")

	err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{song.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if err != nil {
		t.Fatalf("SendPlayCommand: %v", err)
	}

	got := f.controller(target).playCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d play commands, want 1", len(got))
	}
	if len(got[0].ItemIDs) != 1 || got[0].ItemIDs[0] != song.ID {
		t.Errorf("ItemIDs = %v, want [%s]", got[0].ItemIDs, song.ID)
	}
	if got[0].ControllingUserID != "ctrl-user" {
		t.Errorf("ControllingUserID = %s", got[0].ControllingUserID)
	}
}

func TestSendPlayCommandFolderExpansion(t *testing.T) {
	f, controlling, target := controlFixture(t)

	folder := f.library.add(&models.BaseItem{ID: "folder-1", Kind: models.ItemKindFolder, IsFolder: true})
	b := addSong(f, "b-song")
	a := addSong(f, "a-song")
	video := addMovie(f, "z-movie")
	sub := &models.BaseItem{ID: "sub", Kind: models.ItemKindFolder, IsFolder: true}
	virtual := &models.BaseItem{ID: "virt", MediaType: "Audio", IsVirtualItem: true}
	f.library.recursive[folder.ID] = []*models.BaseItem{b, video, sub, a, virtual}

	err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{folder.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if err != nil {
		t.Fatalf("SendPlayCommand: %v", err)
	}

	got := f.controller(target).playCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d play commands, want 1", len(got))
	}
	// Folders and virtual entries drop out, the minority media type (one
	// video against two songs) is filtered, and leaves sort by sort name.
	want := []string{"a-song", "b-song"}
	if len(got[0].ItemIDs) != len(want) {
		t.Fatalf("ItemIDs = %v, want %v", got[0].ItemIDs, want)
	}
	for i := range want {
		if got[0].ItemIDs[i] != want[i] {
			t.Errorf("ItemIDs[%d] = %s, want %s", i, got[0].ItemIDs[i], want[i])
		}
	}
}

func TestSendPlayCommandByNameExpansion(t *testing.T) {
	f, controlling, target := controlFixture(t)

	genre := f.library.add(&models.BaseItem{ID: "genre-jazz", Kind: models.ItemKindByName})
	s1 := addSong(f, "track-2")
	s2 := addSong(f, "track-1")
	f.library.tagged[genre.ID] = []*models.BaseItem{s1, s2}

	err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{genre.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if err != nil {
		t.Fatalf("SendPlayCommand: %v", err)
	}

	got := f.controller(target).playCommands()
	if len(got) != 1 || len(got[0].ItemIDs) != 2 {
		t.Fatalf("play commands = %+v", got)
	}
	if got[0].ItemIDs[0] != "track-1" || got[0].ItemIDs[1] != "track-2" {
		t.Errorf("ItemIDs = %v, want sorted [track-1 track-2]", got[0].ItemIDs)
	}
}

func TestSendPlayCommandShuffleIsSeededPermutation(t *testing.T) {
	runShuffle := func(t *testing.T) []string {
		t.Helper()
		f, controlling, target := controlFixture(t)
		ids := []string{"s1", "s2", "s3", "s4", "s5"}
		for _, id := range ids {
			addSong(f, id)
		}
		err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
			ItemIDs:     ids,
			PlayCommand: models.PlayCommandPlayShuffle,
		})
		if err != nil {
			t.Fatalf("SendPlayCommand: %v", err)
		}
		got := f.controller(target).playCommands()
		if len(got) != 1 {
			t.Fatalf("target received %d play commands, want 1", len(got))
		}
		if got[0].PlayCommand != models.PlayCommandPlayNow {
			t.Errorf("PlayCommand = %s, want PlayNow after shuffle", got[0].PlayCommand)
		}
		return got[0].ItemIDs
	}

	first := runShuffle(t)
	second := runShuffle(t)

	if len(first) != 5 {
		t.Fatalf("shuffled ItemIDs = %v, want 5 entries", first)
	}
	seen := make(map[string]bool, len(first))
	for _, id := range first {
		seen[id] = true
	}
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		if !seen[id] {
			t.Errorf("shuffle dropped %s", id)
		}
	}
	// Same seed, same permutation.
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("permutation not deterministic: %v vs %v", first, second)
		}
	}
}

func TestSendPlayCommandInstantMix(t *testing.T) {
	f, controlling, target := controlFixture(t)

	seed := addSong(f, "seed-song")
	mix1 := addSong(f, "mix-1")
	mix2 := addSong(f, "mix-2")
	f.music.mixes[seed.ID] = []*models.BaseItem{mix1, mix2}

	err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{seed.ID},
		PlayCommand: models.PlayCommandPlayInstantMix,
	})
	if err != nil {
		t.Fatalf("SendPlayCommand: %v", err)
	}

	got := f.controller(target).playCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d play commands, want 1", len(got))
	}
	if got[0].PlayCommand != models.PlayCommandPlayNow {
		t.Errorf("PlayCommand = %s, want PlayNow after mix expansion", got[0].PlayCommand)
	}
	if len(got[0].ItemIDs) != 2 || got[0].ItemIDs[0] != "mix-1" || got[0].ItemIDs[1] != "mix-2" {
		t.Errorf("ItemIDs = %v, want [mix-1 mix-2]", got[0].ItemIDs)
	}
}

func TestSendPlayCommandDeniedPlayAccess(t *testing.T) {
	f := newFixture(t, Config{})
	user := f.users.add(&models.User{ID: "u1", Name: "alice"}, "")
	target := f.userSession("Sable TV", "device-target", user)
	song := addSong(f, "song-1")
	f.library.denied[song.ID] = true

	err := f.manager.SendPlayCommand(context.Background(), "", target.ID(), &models.PlayRequest{
		ItemIDs:     []string{song.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if got := len(f.controller(target).playCommands()); got != 0 {
		t.Errorf("denied play still dispatched %d commands", got)
	}
}

func TestSendPlayCommandMediaTypeRestriction(t *testing.T) {
	f, controlling, target := controlFixture(t)
	target.ApplyCapabilities(&models.ClientCapabilities{PlayableMediaTypes: []string{"Audio"}})

	movie := addMovie(f, "movie-1")
	err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{movie.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("video on an audio-only client: err = %v, want ErrInvalidArgument", err)
	}

	song := addSong(f, "song-1")
	if err := f.manager.SendPlayCommand(context.Background(), controlling.ID(), target.ID(), &models.PlayRequest{
		ItemIDs:     []string{song.ID},
		PlayCommand: models.PlayCommandPlayNow,
	}); err != nil {
		t.Errorf("audio on an audio-only client: %v", err)
	}
}

func TestSendPlayCommandWithoutCapabilitiesRejectsAll(t *testing.T) {
	f := newFixture(t, Config{})
	target := f.session("Sable TV", "device-target")
	song := addSong(f, "song-1")

	// No ReportCapabilities yet: the playable set is empty, which admits
	// no media type at all.
	err := f.manager.SendPlayCommand(context.Background(), "", target.ID(), &models.PlayRequest{
		ItemIDs:     []string{song.ID},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("play before capability report: err = %v, want ErrInvalidArgument", err)
	}
	if got := len(f.controller(target).playCommands()); got != 0 {
		t.Errorf("rejected play still dispatched %d commands", got)
	}
}

func TestSendPlayCommandNextEpisodeExpansion(t *testing.T) {
	f := newFixture(t, Config{})
	user := f.users.add(&models.User{
		ID:            "u1",
		Name:          "alice",
		Configuration: models.UserConfiguration{EnableNextEpisodeAutoPlay: true},
	}, "")
	target := f.userSession("Sable TV", "device-target", user)
	target.ApplyCapabilities(&models.ClientCapabilities{PlayableMediaTypes: []string{"Video"}})

	season := intp(1)
	episodes := make([]*models.BaseItem, 0, 4)
	for i := 1; i <= 4; i++ {
		idx := i
		ep := f.library.add(&models.BaseItem{
			ID:           "ep-" + string(rune('0'+i)),
			MediaType:    "Video",
			Kind:         models.ItemKindEpisode,
			SeriesID:     "series-1",
			SeasonNumber: season,
			IndexNumber:  &idx,
			IsVideo:      true,
		})
		episodes = append(episodes, ep)
	}
	episodes[2].IsVirtualItem = true // a missing episode in the middle
	f.library.episodes["series-1"] = episodes

	err := f.manager.SendPlayCommand(context.Background(), "", target.ID(), &models.PlayRequest{
		ItemIDs:     []string{"ep-2"},
		PlayCommand: models.PlayCommandPlayNow,
	})
	if err != nil {
		t.Fatalf("SendPlayCommand: %v", err)
	}

	got := f.controller(target).playCommands()
	if len(got) != 1 {
		t.Fatalf("target received %d play commands, want 1", len(got))
	}
	want := []string{"ep-2", "ep-4"}
	if len(got[0].ItemIDs) != len(want) {
		t.Fatalf("ItemIDs = %v, want %v", got[0].ItemIDs, want)
	}
	for i := range want {
		if got[0].ItemIDs[i] != want[i] {
			t.Errorf("ItemIDs[%d] = %s, want %s", i, got[0].ItemIDs[i], want[i])
		}
	}
}
