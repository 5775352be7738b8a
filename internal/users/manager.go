// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package users holds the in-memory reference implementations of the user
// collaborator ports: a user registry with bcrypt password verification and
// a per-user playback bookkeeping store. The session core only sees the
// port interfaces; server deployments can swap these for a real directory.
package users

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/models"
)

// Manager is an in-memory user registry.
type Manager struct {
	mu         sync.RWMutex
	byID       map[string]*record
	bcryptCost int
}

type record struct {
	user models.User

	// hash is empty for passwordless users.
	hash []byte
}

// NewManager creates an empty registry. cost is the bcrypt cost used when
// hashing new passwords; out-of-range values fall back to the default.
func NewManager(cost int) *Manager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Manager{
		byID:       make(map[string]*record),
		bcryptCost: cost,
	}
}

// AddUser registers a user with an optional password. The returned snapshot
// carries the generated id.
func (m *Manager) AddUser(user models.User, password string) (*models.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, fmt.Errorf("user name must not be empty")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	var hash []byte
	if password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byID {
		if strings.EqualFold(rec.user.Name, user.Name) {
			return nil, fmt.Errorf("user %q already exists", user.Name)
		}
	}

	m.byID[user.ID] = &record{user: user, hash: hash}
	snapshot := user
	return &snapshot, nil
}

// Users returns a snapshot of all known users.
func (m *Manager) Users(_ context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.User, 0, len(m.byID))
	for _, rec := range m.byID {
		u := rec.user
		out = append(out, &u)
	}
	return out, nil
}

// GetUserByID returns nil when the user does not exist.
func (m *Manager) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	u := rec.user
	return &u, nil
}

// GetUserByName resolves a user by case-insensitive name.
func (m *Manager) GetUserByName(_ context.Context, name string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.byID {
		if strings.EqualFold(rec.user.Name, name) {
			u := rec.user
			return &u, nil
		}
	}
	return nil, nil
}

// AuthenticateUser verifies credentials. A nil user with nil error means the
// credentials were rejected. Passwordless users authenticate with an empty
// password; legacy hash parameters are not honored against bcrypt storage.
func (m *Manager) AuthenticateUser(_ context.Context, username, password, _, _, remoteEndPoint string, _ bool) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.byID {
		if !strings.EqualFold(rec.user.Name, username) {
			continue
		}

		if len(rec.hash) == 0 {
			if password != "" {
				break
			}
			u := rec.user
			return &u, nil
		}

		if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
			break
		}
		u := rec.user
		return &u, nil
	}

	logging.Warn().Str("username", username).Str("remote", remoteEndPoint).Msg("authentication rejected")
	return nil, nil
}

// UpdateUser persists a mutated user snapshot.
func (m *Manager) UpdateUser(_ context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[user.ID]
	if !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	rec.user = *user
	return nil
}

// ChangePassword replaces the user's password; empty clears it.
func (m *Manager) ChangePassword(userID, password string) error {
	var hash []byte
	if password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	rec.hash = hash
	return nil
}

// GetUserDto builds the outward user snapshot.
func (m *Manager) GetUserDto(user *models.User, _ string) *models.UserDTO {
	if user == nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hasPassword := false
	if rec, ok := m.byID[user.ID]; ok {
		hasPassword = len(rec.hash) > 0
	}

	return &models.UserDTO{
		ID:               user.ID,
		Name:             user.Name,
		HasPassword:      hasPassword,
		LastActivityDate: user.LastActivityDate,
	}
}
