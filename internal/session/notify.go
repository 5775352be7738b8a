// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"sync"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
)

// fanOut dispatches send to every active controller concurrently and joins.
// Individual failures are logged and never abort siblings or the caller;
// delivery is best effort.
func (m *Manager) fanOut(ctx context.Context, what string, send func(ctx context.Context, c Controller) error) {
	var wg sync.WaitGroup
	for _, sess := range m.registry.Snapshot() {
		controller := sess.Controller()
		if controller == nil || !controller.IsSessionActive() {
			continue
		}
		sessionID := sess.ID()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := send(ctx, controller); err != nil {
				metrics.FanoutFailuresTotal.Inc()
				logging.Error().
					Err(err).
					Str("session_id", sessionID).
					Str("notification", what).
					Msg("controller notification failed")
			}
		}()
	}
	wg.Wait()
}

// SendServerRestartNotification tells every connected controller the server
// is about to restart.
func (m *Manager) SendServerRestartNotification(ctx context.Context) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	m.fanOut(ctx, "server restart", func(fanCtx context.Context, c Controller) error {
		return c.SendServerRestartNotification(fanCtx)
	})
	return nil
}

// SendServerShutdownNotification tells every connected controller the server
// is shutting down.
func (m *Manager) SendServerShutdownNotification(ctx context.Context) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	m.fanOut(ctx, "server shutdown", func(fanCtx context.Context, c Controller) error {
		return c.SendServerShutdownNotification(fanCtx)
	})
	return nil
}

// SendRestartRequiredNotification tells every connected controller that a
// restart is pending.
func (m *Manager) SendRestartRequiredNotification(ctx context.Context) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	m.fanOut(ctx, "restart required", func(fanCtx context.Context, c Controller) error {
		return c.SendRestartRequiredNotification(fanCtx)
	})
	return nil
}
