// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package devices holds the in-memory reference implementation of the
// device-registry port: device records, per-device saved capabilities, and
// the user device-access check.
package devices

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sablecast/sable/internal/models"
)

// Registry is an in-memory device registry.
type Registry struct {
	mu           sync.RWMutex
	byID         map[string]*models.DeviceInfo
	capabilities map[string]*models.ClientCapabilities

	// onOptionsUpdated is invoked after a custom-name change. The session
	// manager hooks its rename listener here.
	onOptionsUpdated func(models.DeviceOptionsUpdated)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:         make(map[string]*models.DeviceInfo),
		capabilities: make(map[string]*models.ClientCapabilities),
	}
}

// OnOptionsUpdated sets the listener invoked when a device's custom name
// changes.
func (r *Registry) OnOptionsUpdated(fn func(models.DeviceOptionsUpdated)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOptionsUpdated = fn
}

// RegisterDevice upserts a device record, stamping last activity.
func (r *Registry) RegisterDevice(_ context.Context, id, name, appName, appVersion, userID string) error {
	if id == "" {
		return fmt.Errorf("device id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.byID[id]
	if !ok {
		info = &models.DeviceInfo{ID: id}
		r.byID[id] = info
	}
	info.Name = name
	info.AppName = appName
	info.AppVersion = appVersion
	if userID != "" {
		info.LastUserID = userID
	}
	info.DateLastActivity = time.Now().UTC()
	return nil
}

// GetDevice returns nil when the device is unknown.
func (r *Registry) GetDevice(_ context.Context, id string) (*models.DeviceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *info
	return &out, nil
}

// SetCustomName renames a device and notifies the options listener.
func (r *Registry) SetCustomName(id, customName string) error {
	r.mu.Lock()
	info, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %s not found", id)
	}
	info.CustomName = customName
	listener := r.onOptionsUpdated
	r.mu.Unlock()

	if listener != nil {
		listener(models.DeviceOptionsUpdated{DeviceID: id, CustomName: customName})
	}
	return nil
}

// CanAccessDevice reports whether the user may use the device.
// Administrators and users with the all-devices grant always may; otherwise
// the device must be on the user's enabled list. A nil user (anonymous
// connection) is not restricted.
func (r *Registry) CanAccessDevice(user *models.User, deviceID string) bool {
	if user == nil {
		return true
	}
	if user.Policy.IsAdministrator || user.Policy.EnableAllDevices {
		return true
	}
	for _, id := range user.Policy.EnabledDevices {
		if strings.EqualFold(id, deviceID) {
			return true
		}
	}
	return false
}

// GetCapabilities returns the saved capabilities, nil when none were saved.
func (r *Registry) GetCapabilities(_ context.Context, deviceID string) (*models.ClientCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.capabilities[deviceID]
	if !ok {
		return nil, nil
	}
	out := *caps
	return &out, nil
}

// SaveCapabilities persists the device's reported capabilities.
func (r *Registry) SaveCapabilities(_ context.Context, deviceID string, caps *models.ClientCapabilities) error {
	if caps == nil {
		return fmt.Errorf("capabilities must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *caps
	r.capabilities[deviceID] = &stored
	return nil
}
