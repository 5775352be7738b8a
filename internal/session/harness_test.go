// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sablecast/sable/internal/authstore"
	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// eventRecorder captures every published event in arrival order.
type eventRecorder struct {
	mu            sync.Mutex
	names         []string
	started       []models.SessionInfo
	ended         []models.SessionInfo
	activity      []models.SessionInfo
	capabilities  []models.SessionInfo
	starts        []*models.PlaybackEvent
	progresses    []*models.PlaybackEvent
	stops         []*models.PlaybackStopped
	authSucceeded []*models.AuthenticationResult
	authFailed    []*models.AuthenticationRequest
}

func newEventRecorder() *eventRecorder { return &eventRecorder{} }

func (r *eventRecorder) PublishAuthenticationSucceeded(result *models.AuthenticationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "authentication.succeeded")
	r.authSucceeded = append(r.authSucceeded, result)
}

func (r *eventRecorder) PublishAuthenticationFailed(request *models.AuthenticationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "authentication.failed")
	r.authFailed = append(r.authFailed, request)
}

func (r *eventRecorder) PublishSessionStarted(info models.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "session.started")
	r.started = append(r.started, info)
}

func (r *eventRecorder) PublishSessionEnded(info models.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "session.ended")
	r.ended = append(r.ended, info)
}

func (r *eventRecorder) PublishSessionActivity(info models.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "session.activity")
	r.activity = append(r.activity, info)
}

func (r *eventRecorder) PublishCapabilitiesChanged(info models.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "session.capabilities")
	r.capabilities = append(r.capabilities, info)
}

func (r *eventRecorder) PublishPlaybackStart(event *models.PlaybackEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "playback.start")
	r.starts = append(r.starts, event)
}

func (r *eventRecorder) PublishPlaybackProgress(event *models.PlaybackEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "playback.progress")
	r.progresses = append(r.progresses, event)
}

func (r *eventRecorder) PublishPlaybackStopped(event *models.PlaybackStopped) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, "playback.stopped")
	r.stops = append(r.stops, event)
}

func (r *eventRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func (r *eventRecorder) ActivityCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activity)
}

func (r *eventRecorder) Started() []models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionInfo(nil), r.started...)
}

func (r *eventRecorder) Ended() []models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionInfo(nil), r.ended...)
}

func (r *eventRecorder) Capabilities() []models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionInfo(nil), r.capabilities...)
}

func (r *eventRecorder) Starts() []*models.PlaybackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.PlaybackEvent(nil), r.starts...)
}

func (r *eventRecorder) Progresses() []*models.PlaybackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.PlaybackEvent(nil), r.progresses...)
}

func (r *eventRecorder) Stops() []*models.PlaybackStopped {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.PlaybackStopped(nil), r.stops...)
}

func (r *eventRecorder) AuthFailed() []*models.AuthenticationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuthenticationRequest(nil), r.authFailed...)
}

func (r *eventRecorder) AuthSucceeded() []*models.AuthenticationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuthenticationResult(nil), r.authSucceeded...)
}

// fakeUsers is a map-backed UserManager with plain-text password checks.
type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	passwords map[string]string
	updates   int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*models.User), passwords: make(map[string]string)}
}

func (f *fakeUsers) add(user *models.User, password string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *user
	f.byID[user.ID] = &clone
	f.passwords[user.ID] = password
	return user
}

func (f *fakeUsers) Users(ctx context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Name, name) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) AuthenticateUser(ctx context.Context, username, password, passwordSha1, passwordMd5, remoteEndPoint string, isApp bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Name, username) {
			if f.passwords[u.ID] != password {
				return nil, nil
			}
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *user
	f.byID[user.ID] = &clone
	f.updates++
	return nil
}

func (f *fakeUsers) GetUserDto(user *models.User, remoteEndPoint string) *models.UserDTO {
	if user == nil {
		return nil
	}
	return &models.UserDTO{ID: user.ID, Name: user.Name}
}

func (f *fakeUsers) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// savedUserData is one recorded SaveUserData call.
type savedUserData struct {
	userID string
	itemID string
	reason models.UserDataSaveReason
	data   models.UserItemData
}

// fakeUserData persists records in memory and applies the played-status
// rule: items with a runtime finish at 90 percent, items without a runtime
// finish unless they are video.
type fakeUserData struct {
	mu    sync.Mutex
	rows  map[string]models.UserItemData
	saves []savedUserData
}

func newFakeUserData() *fakeUserData {
	return &fakeUserData{rows: make(map[string]models.UserItemData)}
}

func userDataKey(userID, itemID string) string { return userID + "|" + itemID }

func (f *fakeUserData) GetUserData(ctx context.Context, userID string, item *models.BaseItem) (*models.UserItemData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := f.rows[userDataKey(userID, item.ID)]
	return &data, nil
}

func (f *fakeUserData) UpdatePlayState(item *models.BaseItem, data *models.UserItemData, positionTicks int64) bool {
	finished := false
	if item.RunTimeTicks != nil && *item.RunTimeTicks > 0 {
		data.PlaybackPositionTicks = positionTicks
		if positionTicks*10 >= *item.RunTimeTicks*9 {
			finished = true
			data.PlaybackPositionTicks = 0
		}
	} else {
		data.PlaybackPositionTicks = 0
		finished = !item.IsVideo
	}
	if finished && item.SupportsPlayedStatus {
		data.Played = true
		data.PlayCount++
	}
	return finished
}

func (f *fakeUserData) SaveUserData(ctx context.Context, userID string, item *models.BaseItem, data *models.UserItemData, reason models.UserDataSaveReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[userDataKey(userID, item.ID)] = *data
	f.saves = append(f.saves, savedUserData{userID: userID, itemID: item.ID, reason: reason, data: *data})
	return nil
}

func (f *fakeUserData) lastSave(userID, itemID string) (savedUserData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saves) - 1; i >= 0; i-- {
		if f.saves[i].userID == userID && f.saves[i].itemID == itemID {
			return f.saves[i], true
		}
	}
	return savedUserData{}, false
}

// fakeLibrary serves canned items and expansions.
type fakeLibrary struct {
	mu        sync.Mutex
	items     map[string]*models.BaseItem
	tagged    map[string][]*models.BaseItem
	recursive map[string][]*models.BaseItem
	episodes  map[string][]*models.BaseItem
	denied    map[string]bool
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		items:     make(map[string]*models.BaseItem),
		tagged:    make(map[string][]*models.BaseItem),
		recursive: make(map[string][]*models.BaseItem),
		episodes:  make(map[string][]*models.BaseItem),
		denied:    make(map[string]bool),
	}
}

func (f *fakeLibrary) add(item *models.BaseItem) *models.BaseItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return item
}

func (f *fakeLibrary) GetItemByID(ctx context.Context, id string) (*models.BaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeLibrary) GetTaggedChildren(ctx context.Context, byName *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tagged[byName.ID], nil
}

func (f *fakeLibrary) GetRecursiveChildren(ctx context.Context, folder *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recursive[folder.ID], nil
}

func (f *fakeLibrary) GetEpisodes(ctx context.Context, seriesID string, user *models.User) ([]*models.BaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.episodes[seriesID], nil
}

func (f *fakeLibrary) GetPlayAccess(user *models.User, item *models.BaseItem) models.PlayAccess {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied[item.ID] {
		return models.PlayAccessNone
	}
	return models.PlayAccessFull
}

// fakeMusic serves canned instant mixes keyed by seed item id.
type fakeMusic struct {
	mixes map[string][]*models.BaseItem
}

func newFakeMusic() *fakeMusic { return &fakeMusic{mixes: make(map[string][]*models.BaseItem)} }

func (f *fakeMusic) GetInstantMixFromItem(ctx context.Context, item *models.BaseItem, user *models.User) ([]*models.BaseItem, error) {
	return f.mixes[item.ID], nil
}

// fakeMediaSources serves one media source per item id and records closed
// live streams.
type fakeMediaSources struct {
	mu       sync.Mutex
	sources  map[string]*models.MediaSourceInfo
	closed   []string
	closeErr error
}

func newFakeMediaSources() *fakeMediaSources {
	return &fakeMediaSources{sources: make(map[string]*models.MediaSourceInfo)}
}

func (f *fakeMediaSources) GetMediaSource(ctx context.Context, item *models.BaseItem, mediaSourceID, liveStreamID string) (*models.MediaSourceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[item.ID], nil
}

func (f *fakeMediaSources) CloseLiveStream(ctx context.Context, liveStreamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, liveStreamID)
	return f.closeErr
}

func (f *fakeMediaSources) closedStreams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

// fakeDevices is a map-backed DeviceManager with a pluggable access policy.
type fakeDevices struct {
	mu        sync.Mutex
	devices   map[string]*models.DeviceInfo
	caps      map[string]*models.ClientCapabilities
	saved     map[string]*models.ClientCapabilities
	registers int
	allow     func(user *models.User, deviceID string) bool
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		devices: make(map[string]*models.DeviceInfo),
		caps:    make(map[string]*models.ClientCapabilities),
		saved:   make(map[string]*models.ClientCapabilities),
	}
}

func (f *fakeDevices) RegisterDevice(ctx context.Context, id, name, appName, appVersion, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if _, ok := f.devices[id]; !ok {
		f.devices[id] = &models.DeviceInfo{ID: id, Name: name, AppName: appName, AppVersion: appVersion, LastUserID: userID}
	}
	return nil
}

func (f *fakeDevices) GetDevice(ctx context.Context, id string) (*models.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[id], nil
}

func (f *fakeDevices) CanAccessDevice(user *models.User, deviceID string) bool {
	f.mu.Lock()
	allow := f.allow
	f.mu.Unlock()
	if allow != nil {
		return allow(user, deviceID)
	}
	return true
}

func (f *fakeDevices) GetCapabilities(ctx context.Context, deviceID string) (*models.ClientCapabilities, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps[deviceID], nil
}

func (f *fakeDevices) SaveCapabilities(ctx context.Context, deviceID string, caps *models.ClientCapabilities) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[deviceID] = caps
	return nil
}

func (f *fakeDevices) savedCapabilities(deviceID string) *models.ClientCapabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[deviceID]
}

// fakeImages resolves a deterministic tag per item.
type fakeImages struct{}

func (fakeImages) GetImageCacheTag(item *models.BaseItem) (string, error) {
	return "tag-" + item.ID, nil
}

// fakeController records everything pushed through it.
type fakeController struct {
	mu           sync.Mutex
	active       bool
	mediaControl bool
	sendErr      error

	general   []*models.GeneralCommand
	playstate []*models.PlaystateRequest
	plays     []*models.PlayRequest
	messages  []string

	playbackStarts  int
	playbackStops   int
	sessionEnds     int
	serverRestarts  int
	serverShutdowns int
	restartPending  int
	activityCalls   int
}

func newFakeController() *fakeController {
	return &fakeController{active: true, mediaControl: true}
}

func (c *fakeController) IsSessionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *fakeController) SupportsMediaControl() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaControl
}

func (c *fakeController) OnActivity() {
	c.mu.Lock()
	c.activityCalls++
	c.mu.Unlock()
}

func (c *fakeController) SendGeneralCommand(ctx context.Context, cmd *models.GeneralCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.general = append(c.general, cmd)
	return c.sendErr
}

func (c *fakeController) SendPlaystateCommand(ctx context.Context, cmd *models.PlaystateRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playstate = append(c.playstate, cmd)
	return c.sendErr
}

func (c *fakeController) SendPlayCommand(ctx context.Context, cmd *models.PlayRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, cmd)
	return c.sendErr
}

func (c *fakeController) SendMessage(ctx context.Context, name string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, name)
	return c.sendErr
}

func (c *fakeController) SendPlaybackStartNotification(ctx context.Context, info models.SessionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playbackStarts++
	return c.sendErr
}

func (c *fakeController) SendPlaybackStoppedNotification(ctx context.Context, info models.SessionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playbackStops++
	return c.sendErr
}

func (c *fakeController) SendSessionEndedNotification(ctx context.Context, info models.SessionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionEnds++
	return c.sendErr
}

func (c *fakeController) SendServerRestartNotification(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverRestarts++
	return c.sendErr
}

func (c *fakeController) SendServerShutdownNotification(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverShutdowns++
	return c.sendErr
}

func (c *fakeController) SendRestartRequiredNotification(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restartPending++
	return c.sendErr
}

func (c *fakeController) generalCommands() []*models.GeneralCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.GeneralCommand(nil), c.general...)
}

func (c *fakeController) playstateCommands() []*models.PlaystateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.PlaystateRequest(nil), c.playstate...)
}

func (c *fakeController) playCommands() []*models.PlayRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.PlayRequest(nil), c.plays...)
}

func (c *fakeController) count(which string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch which {
	case "playbackStarts":
		return c.playbackStarts
	case "playbackStops":
		return c.playbackStops
	case "sessionEnds":
		return c.sessionEnds
	case "serverRestarts":
		return c.serverRestarts
	case "serverShutdowns":
		return c.serverShutdowns
	case "restartPending":
		return c.restartPending
	case "activity":
		return c.activityCalls
	}
	return 0
}

func (c *fakeController) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// fakeDisposableController additionally tracks Dispose calls.
type fakeDisposableController struct {
	*fakeController
	disposeCalls int
}

func (c *fakeDisposableController) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeCalls++
	return nil
}

// fixture wires a Manager to fakes of every collaborator. The controller
// factory binds a fresh fakeController to every new session unless the
// device id was marked controller-less.
type fixture struct {
	t *testing.T

	manager  *Manager
	clock    *fakeClock
	events   *eventRecorder
	users    *fakeUsers
	userData *fakeUserData
	library  *fakeLibrary
	music    *fakeMusic
	media    *fakeMediaSources
	devices  *fakeDevices
	tokens   *authstore.MemoryRepository

	mu           sync.Mutex
	controllers  map[string]*fakeController
	noController map[string]bool
	factoryCalls int
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		t:            t,
		clock:        newFakeClock(),
		events:       newEventRecorder(),
		users:        newFakeUsers(),
		userData:     newFakeUserData(),
		library:      newFakeLibrary(),
		music:        newFakeMusic(),
		media:        newFakeMediaSources(),
		devices:      newFakeDevices(),
		tokens:       authstore.NewMemoryRepository(),
		controllers:  make(map[string]*fakeController),
		noController: make(map[string]bool),
	}

	factory := ControllerFactoryFunc(func(sess *Session) Controller {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.factoryCalls++
		if f.noController[sess.DeviceID()] {
			return nil
		}
		c := newFakeController()
		f.controllers[sess.ID()] = c
		return c
	})

	f.manager = NewManager(cfg, Dependencies{
		UserManager:        f.users,
		UserDataManager:    f.userData,
		LibraryManager:     f.library,
		MusicManager:       f.music,
		MediaSourceManager: f.media,
		DeviceManager:      f.devices,
		AuthRepo:           f.tokens,
		ImageProcessor:     fakeImages{},
		Events:             f.events,
		Clock:              f.clock,
		Rand:               rand.New(rand.NewSource(1)),
	}, factory)
	t.Cleanup(f.manager.Dispose)
	return f
}

func (f *fixture) session(client, deviceID string) *Session {
	return f.userSession(client, deviceID, nil)
}

func (f *fixture) userSession(client, deviceID string, user *models.User) *Session {
	f.t.Helper()
	sess, err := f.manager.LogSessionActivity(context.Background(), client, "1.0.0", deviceID, deviceID+" name", "192.168.1.10", user)
	if err != nil {
		f.t.Fatalf("LogSessionActivity(%s, %s): %v", client, deviceID, err)
	}
	return sess
}

func (f *fixture) controller(sess *Session) *fakeController {
	f.t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.controllers[sess.ID()]
	if !ok {
		f.t.Fatalf("no controller bound for session %s", sess.ID())
	}
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func ticks(v int64) *int64 { return &v }

func intp(v int) *int { return &v }
