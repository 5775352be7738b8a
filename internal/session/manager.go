// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package session implements the coordination core of the media server: the
// live session registry, the playback state machine, remote control routing,
// authentication and token lifecycle, and event fan-out to connected
// controllers.
//
// Concurrency model: a single serializing mutex guards the registry mutation
// path (session creation and removal). Everything else reads stable
// snapshots. The lock is never held across controller fan-out, user-data
// persistence, library lookups, or event-listener invocations.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// Config tunes the manager's timers and thresholds.
type Config struct {
	// ServerID identifies this server in authentication results.
	ServerID string

	// AutoProgressInterval is the period of the per-session automated
	// progress reporter. Default: 10s.
	AutoProgressInterval time.Duration

	// IdleSweepInterval is the period of the global idle scan. Default: 5m.
	IdleSweepInterval time.Duration

	// IdleTimeout is how long a playing session may go without a real
	// playback check-in before its playback is terminated. Default: 5m.
	IdleTimeout time.Duration

	// ActivityEventThreshold suppresses session.activity events for reports
	// arriving within this window of the previous one. Default: 10s.
	ActivityEventThreshold time.Duration

	// UserActivityThreshold limits how often a user's own activity stamp is
	// written back through the user manager. Default: 60s.
	UserActivityThreshold time.Duration
}

func (c *Config) applyDefaults() {
	if c.AutoProgressInterval <= 0 {
		c.AutoProgressInterval = 10 * time.Second
	}
	if c.IdleSweepInterval <= 0 {
		c.IdleSweepInterval = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ActivityEventThreshold <= 0 {
		c.ActivityEventThreshold = 10 * time.Second
	}
	if c.UserActivityThreshold <= 0 {
		c.UserActivityThreshold = 60 * time.Second
	}
}

// Dependencies are the external collaborators the manager binds. Users,
// items, devices, and tokens are owned elsewhere; the manager only owns live
// sessions.
type Dependencies struct {
	UserManager        UserManager
	UserDataManager    UserDataManager
	LibraryManager     LibraryManager
	MusicManager       MusicManager
	MediaSourceManager MediaSourceManager
	DeviceManager      DeviceManager
	AuthRepo           AuthenticationRepository
	ImageProcessor     ImageProcessor
	Events             EventPublisher

	// Clock defaults to SystemClock.
	Clock Clock

	// Rand seeds the play-queue shuffle. Defaults to a time-seeded source;
	// tests inject a fixed seed for deterministic permutations.
	Rand *rand.Rand
}

// Manager is the session coordination core.
type Manager struct {
	cfg  Config
	deps Dependencies

	registry  *registry
	factories []ControllerFactory

	// activityMu serializes session creation and removal against racing
	// activity reports from multiple transports.
	activityMu sync.Mutex

	randMu sync.Mutex

	sweeper *idleSweeper

	// teardown tracks spawned best-effort tasks so Dispose can drain them.
	teardown sync.WaitGroup

	disposed atomic.Bool
}

// NewManager creates a session manager. Factories are consulted in order
// when binding a controller to a new session.
func NewManager(cfg Config, deps Dependencies, factories ...ControllerFactory) *Manager {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // shuffle order is not security sensitive
	}

	m := &Manager{
		cfg:       cfg,
		deps:      deps,
		registry:  newRegistry(),
		factories: factories,
	}
	m.sweeper = newIdleSweeper(m)
	return m
}

// checkDisposed guards every public entry point.
func (m *Manager) checkDisposed() error {
	if m.disposed.Load() {
		return ErrDisposed
	}
	return nil
}

// spawn runs fn on a tracked goroutine. Dispose drains all spawned tasks
// before completing so teardown work is never abandoned mid-flight.
func (m *Manager) spawn(fn func()) {
	m.teardown.Add(1)
	go func() {
		defer m.teardown.Done()
		fn()
	}()
}

// LogSessionActivity records activity for (appName, deviceID), creating the
// session on first contact. Re-login for the same tuple updates the existing
// session; the registry never holds duplicates.
func (m *Manager) LogSessionActivity(ctx context.Context, appName, appVersion, deviceID, deviceName, remoteEndPoint string, user *models.User) (*Session, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	for name, v := range map[string]string{
		"appName":        appName,
		"appVersion":     appVersion,
		"deviceId":       deviceID,
		"deviceName":     deviceName,
		"remoteEndPoint": remoteEndPoint,
	} {
		if v == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, name)
		}
	}

	sess, created := m.getOrCreateSession(ctx, appName, appVersion, deviceID, deviceName, remoteEndPoint, user)

	// Event publishing and collaborator notifications happen outside the
	// serializing lock; a listener draining slowly must not stall other
	// activity reports. Only the creator publishes session.started, and it
	// does so before its own session.activity.
	if created {
		m.deps.Events.PublishSessionStarted(sess.Snapshot())
		metrics.SessionsStartedTotal.Inc()
	}

	now := m.deps.Clock.Now()
	previous := sess.UpdateActivity(now)
	if created || now.Sub(previous) > m.cfg.ActivityEventThreshold {
		m.deps.Events.PublishSessionActivity(sess.Snapshot())
	}

	if user != nil {
		m.touchUserActivity(ctx, user, now)
	}

	if c := sess.Controller(); c != nil {
		c.OnActivity()
	}

	return sess, nil
}

// getOrCreateSession is the serialized critical section of the activity path.
func (m *Manager) getOrCreateSession(ctx context.Context, appName, appVersion, deviceID, deviceName, remoteEndPoint string, user *models.User) (*Session, bool) {
	m.activityMu.Lock()
	defer m.activityMu.Unlock()

	sess := m.registry.Get(appName, deviceID)
	created := false
	if sess == nil {
		created = true
		sess = NewSession(appName, deviceID, deviceName, appVersion, remoteEndPoint)

		if caps, err := m.deps.DeviceManager.GetCapabilities(ctx, deviceID); err != nil {
			logging.Error().Err(err).Str("device_id", deviceID).Msg("failed to load saved capabilities")
		} else if caps != nil {
			// Apply without re-persisting; they are already saved.
			sess.ApplyCapabilities(caps)
		}

		m.registry.Insert(sess)
		metrics.SessionsActive.Set(float64(m.registry.Len()))

		userID := ""
		if user != nil {
			userID = user.ID
		}
		if err := m.deps.DeviceManager.RegisterDevice(ctx, deviceID, deviceName, appName, appVersion, userID); err != nil {
			logging.Error().Err(err).Str("device_id", deviceID).Msg("failed to register device")
		}
	}

	// New or existing, refresh the mutable identity from this report. A
	// device custom name overrides the reported one.
	name := deviceName
	if device, err := m.deps.DeviceManager.GetDevice(ctx, deviceID); err == nil && device != nil && device.CustomName != "" {
		name = device.CustomName
	}
	sess.RefreshIdentity(name, appVersion, remoteEndPoint)
	if user != nil {
		sess.SetUser(user.ID, user.Name)
	}

	if sess.Controller() == nil {
		for _, factory := range m.factories {
			if c := factory.GetSessionController(sess); c != nil {
				sess.BindController(c)
				break
			}
		}
	}

	return sess, created
}

// touchUserActivity writes the user's own activity stamp back through the
// user manager, rate limited by UserActivityThreshold. Failures are logged
// and never fail the activity report.
func (m *Manager) touchUserActivity(ctx context.Context, user *models.User, now time.Time) {
	if user.LastActivityDate != nil && now.Sub(*user.LastActivityDate) <= m.cfg.UserActivityThreshold {
		return
	}
	stamp := now
	user.LastActivityDate = &stamp
	if err := m.deps.UserManager.UpdateUser(ctx, user); err != nil {
		logging.Error().Err(err).Str("user_id", user.ID).Msg("failed to update user activity date")
	}
}

// ReportSessionEnded removes the session and notifies listeners and remote
// controllers. The removal is authoritative; all secondary failures are
// logged and swallowed.
func (m *Manager) ReportSessionEnded(ctx context.Context, sessionID string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}

	m.activityMu.Lock()
	sess := m.registry.Remove(sessionID)
	metrics.SessionsActive.Set(float64(m.registry.Len()))
	m.activityMu.Unlock()

	if sess == nil {
		return nil
	}
	metrics.SessionsEndedTotal.Inc()

	info := sess.Snapshot()
	m.deps.Events.PublishSessionEnded(info)

	// Best-effort notification to every still-active controller; drained by
	// Dispose via the teardown barrier.
	m.spawn(func() {
		m.fanOut(context.WithoutCancel(ctx), "session ended", func(fanCtx context.Context, c Controller) error {
			return c.SendSessionEndedNotification(fanCtx, info)
		})
	})

	sess.Dispose()
	return nil
}

// ReportNowViewingItem is accepted for API compatibility and intentionally
// does nothing, pending a product decision on surfacing browse state.
func (m *Manager) ReportNowViewingItem(ctx context.Context, sessionID, itemID string) error {
	return m.checkDisposed()
}

// ReportCapabilities installs a client's declared capability set on its
// session and optionally persists it to the device registry.
func (m *Manager) ReportCapabilities(ctx context.Context, sessionID string, caps *models.ClientCapabilities, saveCapabilities bool) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	sess := m.registry.BySessionID(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.ApplyCapabilities(caps)
	m.deps.Events.PublishCapabilitiesChanged(sess.Snapshot())

	if saveCapabilities {
		if err := m.deps.DeviceManager.SaveCapabilities(ctx, sess.DeviceID(), caps); err != nil {
			logging.Error().Err(err).Str("device_id", sess.DeviceID()).Msg("failed to save capabilities")
		}
	}
	return nil
}

// AddAdditionalUser attaches a secondary user to a session.
func (m *Manager) AddAdditionalUser(ctx context.Context, sessionID, userID string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	sess := m.registry.BySessionID(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	user, err := m.deps.UserManager.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %s not found", ErrInvalidArgument, userID)
	}
	return sess.AddAdditionalUser(user.ID, user.Name)
}

// RemoveAdditionalUser detaches a secondary user from a session.
func (m *Manager) RemoveAdditionalUser(ctx context.Context, sessionID, userID string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	sess := m.registry.BySessionID(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.RemoveAdditionalUser(userID)
	return nil
}

// OnDeviceOptionsUpdated renames every session on the device when the
// registry reports a custom-name change. The manager subscribes to this on
// the device manager's event feed.
func (m *Manager) OnDeviceOptionsUpdated(ev models.DeviceOptionsUpdated) {
	if m.disposed.Load() || ev.CustomName == "" {
		return
	}
	for _, sess := range m.registry.ByDeviceID(ev.DeviceID) {
		sess.SetDeviceName(ev.CustomName)
	}
}

// Sessions returns snapshots of all sessions, newest activity first.
func (m *Manager) Sessions() []models.SessionInfo {
	sessions := m.registry.Snapshot()
	out := make([]models.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Snapshot())
	}
	return out
}

// GetSession returns the live session with the given id, or nil.
func (m *Manager) GetSession(sessionID string) *Session {
	return m.registry.BySessionID(sessionID)
}

// GetSessionsByDeviceID returns the live sessions on the given device.
func (m *Manager) GetSessionsByDeviceID(deviceID string) []*Session {
	return m.registry.ByDeviceID(deviceID)
}

// Dispose tears the manager down: the idle sweeper stops, pending teardown
// tasks drain, and every session is disposed. Public entry points fail with
// ErrDisposed afterwards.
func (m *Manager) Dispose() {
	if !m.disposed.CompareAndSwap(false, true) {
		return
	}
	m.sweeper.Stop()
	m.teardown.Wait()

	m.activityMu.Lock()
	sessions := m.registry.Snapshot()
	m.activityMu.Unlock()
	for _, sess := range sessions {
		sess.Dispose()
	}
}
