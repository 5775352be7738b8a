// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"sort"
	"strings"
	"sync"
)

// registry is the concurrent map from session key to live session. Mutation
// of the key set happens only on the manager's serialized activity path; all
// reads take stable snapshots so callers never iterate under the lock.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// Get returns the session for (client, deviceId), or nil.
func (r *registry) Get(client, deviceID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[SessionKey(client, deviceID)]
}

// Insert adds a session under its key. An existing session for the same key
// is kept and returned with inserted=false: the registry holds at most one
// session per (client, deviceId) tuple.
func (r *registry) Insert(sess *Session) (*Session, bool) {
	key := SessionKey(sess.Client(), sess.DeviceID())
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[key]; ok {
		return existing, false
	}
	r.sessions[key] = sess
	return sess, true
}

// Remove deletes and returns the session with the given session id, or nil.
func (r *registry) Remove(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, sess := range r.sessions {
		if sess.ID() == sessionID {
			delete(r.sessions, key)
			return sess
		}
	}
	return nil
}

// BySessionID returns the session with the given id, or nil.
func (r *registry) BySessionID(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sess := range r.sessions {
		if sess.ID() == sessionID {
			return sess
		}
	}
	return nil
}

// ByDeviceID returns all sessions on the given device.
func (r *registry) ByDeviceID(deviceID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, sess := range r.sessions {
		if strings.EqualFold(sess.DeviceID(), deviceID) {
			out = append(out, sess)
		}
	}
	return out
}

// Snapshot returns all sessions ordered by last activity, newest first.
func (r *registry) Snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out
}

// Len returns the number of registered sessions.
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
