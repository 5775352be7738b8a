// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// resolveControl resolves the target session and, when a controlling session
// is named, validates that it may control the target. Returns the
// controlling user id to stamp onto payloads.
func (m *Manager) resolveControl(controllingSessionID, targetSessionID string) (*Session, string, error) {
	target := m.registry.BySessionID(targetSessionID)
	if target == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrSessionNotFound, targetSessionID)
	}

	if controllingSessionID == "" {
		return target, "", nil
	}

	controlling := m.registry.BySessionID(controllingSessionID)
	if err := m.assertCanControl(target, controlling); err != nil {
		return nil, "", err
	}
	return target, controlling.UserID(), nil
}

// assertCanControl is the control-policy hook. The current policy only
// requires the controlling session to exist; richer checks plug in here.
func (m *Manager) assertCanControl(target, controlling *Session) error {
	if target == nil || controlling == nil {
		return fmt.Errorf("%w: controlling session not found", ErrSessionNotFound)
	}
	return nil
}

// controllerFor returns the target's controller or an error when no
// transport is bound.
func controllerFor(target *Session) (Controller, error) {
	c := target.Controller()
	if c == nil {
		return nil, fmt.Errorf("%w: session %s has no controller", ErrInvalidArgument, target.ID())
	}
	return c, nil
}

// SendGeneralCommand routes a named command to the target session.
func (m *Manager) SendGeneralCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.GeneralCommand) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	target, controllingUserID, err := m.resolveControl(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	controller, err := controllerFor(target)
	if err != nil {
		return err
	}
	cmd.ControllingUserID = controllingUserID
	metrics.RemoteCommandsTotal.WithLabelValues("general").Inc()
	return controller.SendGeneralCommand(ctx, cmd)
}

// SendPlaystateCommand routes a playstate verb to the target session.
func (m *Manager) SendPlaystateCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.PlaystateRequest) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	target, controllingUserID, err := m.resolveControl(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	controller, err := controllerFor(target)
	if err != nil {
		return err
	}
	cmd.ControllingUserID = controllingUserID
	metrics.RemoteCommandsTotal.WithLabelValues("playstate").Inc()
	return controller.SendPlaystateCommand(ctx, cmd)
}

// SendMessageCommand lowers a message onto the DisplayMessage general
// command.
func (m *Manager) SendMessageCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.MessageCommand) error {
	args := map[string]string{
		"Header": cmd.Header,
		"Text":   cmd.Text,
	}
	if cmd.TimeoutMs != nil {
		args["TimeoutMs"] = strconv.FormatInt(*cmd.TimeoutMs, 10)
	}
	return m.SendGeneralCommand(ctx, controllingSessionID, targetSessionID, &models.GeneralCommand{
		Name:      models.GeneralCommandDisplayMessage,
		Arguments: args,
	})
}

// SendBrowseCommand lowers a browse request onto the DisplayContent general
// command.
func (m *Manager) SendBrowseCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.BrowseRequest) error {
	return m.SendGeneralCommand(ctx, controllingSessionID, targetSessionID, &models.GeneralCommand{
		Name: models.GeneralCommandDisplayContent,
		Arguments: map[string]string{
			"ItemId":   cmd.ItemID,
			"ItemName": cmd.ItemName,
			"ItemType": cmd.ItemType,
		},
	})
}

// SendPlayCommand expands, validates, and routes a play request to the
// target session.
func (m *Manager) SendPlayCommand(ctx context.Context, controllingSessionID, targetSessionID string, request *models.PlayRequest) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	target, controllingUserID, err := m.resolveControl(controllingSessionID, targetSessionID)
	if err != nil {
		return err
	}
	controller, err := controllerFor(target)
	if err != nil {
		return err
	}
	request.ControllingUserID = controllingUserID

	var user *models.User
	if uid := target.UserID(); uid != "" {
		user, err = m.deps.UserManager.GetUserByID(ctx, uid)
		if err != nil {
			return err
		}
	}

	items, err := m.expandPlayRequest(ctx, request, user)
	if err != nil {
		return err
	}

	for _, item := range items {
		if user != nil && m.deps.LibraryManager.GetPlayAccess(user, item) != models.PlayAccessFull {
			return fmt.Errorf("%w: user is not allowed to play media", ErrInvalidArgument)
		}
	}

	// A session that has declared no playable media types cannot play
	// anything; the empty set admits nothing.
	playable := target.PlayableMediaTypes()
	for _, item := range items {
		if !containsFold(playable, item.MediaType) {
			return fmt.Errorf("%w: unable to play the requested media type", ErrInvalidArgument)
		}
	}

	request.ItemIDs = itemIDs(items)

	if user != nil && user.Configuration.EnableNextEpisodeAutoPlay && len(request.ItemIDs) == 1 {
		if err := m.expandNextEpisodes(ctx, request, user); err != nil {
			return err
		}
	}

	metrics.RemoteCommandsTotal.WithLabelValues("play").Inc()
	return controller.SendPlayCommand(ctx, request)
}

// expandPlayRequest resolves the requested ids into concrete playable items
// according to the play command.
func (m *Manager) expandPlayRequest(ctx context.Context, request *models.PlayRequest, user *models.User) ([]*models.BaseItem, error) {
	var items []*models.BaseItem

	if request.PlayCommand == models.PlayCommandPlayInstantMix {
		for _, id := range request.ItemIDs {
			seed, err := m.deps.LibraryManager.GetItemByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if seed == nil {
				continue
			}
			mix, err := m.deps.MusicManager.GetInstantMixFromItem(ctx, seed, user)
			if err != nil {
				return nil, err
			}
			items = append(items, mix...)
		}
		request.PlayCommand = models.PlayCommandPlayNow
		return items, nil
	}

	for _, id := range request.ItemIDs {
		item, err := m.deps.LibraryManager.GetItemByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		translated, err := m.translateItemForPlayback(ctx, item, user)
		if err != nil {
			return nil, err
		}
		items = append(items, translated...)
	}

	if request.PlayCommand == models.PlayCommandPlayShuffle {
		items = m.shuffleItems(items)
		request.PlayCommand = models.PlayCommandPlayNow
	}

	return items, nil
}

// translateItemForPlayback flattens a container into its playable leaves.
// By-name items (person, genre) and folders expand to their non-virtual,
// non-folder descendants, filtered to the dominant media type and sorted by
// sort name; leaves pass through.
func (m *Manager) translateItemForPlayback(ctx context.Context, item *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	var children []*models.BaseItem
	var err error

	switch {
	case item.IsByName():
		children, err = m.deps.LibraryManager.GetTaggedChildren(ctx, item, user)
	case item.IsFolder:
		children, err = m.deps.LibraryManager.GetRecursiveChildren(ctx, item, user)
	default:
		return []*models.BaseItem{item}, nil
	}
	if err != nil {
		return nil, err
	}

	filtered := children[:0:0]
	for _, child := range children {
		if child.IsFolder || child.IsVirtualItem {
			continue
		}
		filtered = append(filtered, child)
	}
	filtered = dominantMediaType(filtered)

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].SortName < filtered[j].SortName
	})
	return filtered, nil
}

// dominantMediaType keeps only the largest media-type group, grouped
// case-insensitively. Ties break toward the group seen first.
func dominantMediaType(items []*models.BaseItem) []*models.BaseItem {
	if len(items) == 0 {
		return items
	}

	counts := make(map[string]int)
	var order []string
	for _, item := range items {
		key := strings.ToLower(item.MediaType)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	dominant := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[dominant] {
			dominant = key
		}
	}

	out := items[:0:0]
	for _, item := range items {
		if strings.EqualFold(item.MediaType, dominant) {
			out = append(out, item)
		}
	}
	return out
}

// shuffleItems produces a uniform random permutation by sorting on fresh
// random keys from the injected source.
func (m *Manager) shuffleItems(items []*models.BaseItem) []*models.BaseItem {
	type keyed struct {
		key  int
		item *models.BaseItem
	}

	m.randMu.Lock()
	keyedItems := make([]keyed, len(items))
	for i, item := range items {
		keyedItems[i] = keyed{key: m.deps.Rand.Int(), item: item}
	}
	m.randMu.Unlock()

	sort.SliceStable(keyedItems, func(i, j int) bool {
		return keyedItems[i].key < keyedItems[j].key
	})

	out := make([]*models.BaseItem, len(items))
	for i, k := range keyedItems {
		out[i] = k.item
	}
	return out
}

// expandNextEpisodes replaces a single-episode request with the remainder of
// the series from that episode on, skipping virtual entries.
func (m *Manager) expandNextEpisodes(ctx context.Context, request *models.PlayRequest, user *models.User) error {
	episode, err := m.deps.LibraryManager.GetItemByID(ctx, request.ItemIDs[0])
	if err != nil {
		return err
	}
	if episode == nil || !episode.IsEpisode() || episode.SeriesID == "" {
		return nil
	}

	episodes, err := m.deps.LibraryManager.GetEpisodes(ctx, episode.SeriesID, user)
	if err != nil {
		return err
	}

	var ids []string
	found := false
	for _, e := range episodes {
		if !found && e.ID == episode.ID {
			found = true
		}
		if !found || e.IsVirtualItem {
			continue
		}
		ids = append(ids, e.ID)
	}
	if found {
		request.ItemIDs = ids
	}
	return nil
}

// containsFold reports whether list contains v, case-insensitively.
func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// itemIDs projects items onto their ids.
func itemIDs(items []*models.BaseItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
