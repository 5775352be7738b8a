// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

import "time"

// DeviceInfo is the device-registry record the session core consumes.
type DeviceInfo struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CustomName       string    `json:"custom_name,omitempty"`
	AppName          string    `json:"app_name,omitempty"`
	AppVersion       string    `json:"app_version,omitempty"`
	LastUserID       string    `json:"last_user_id,omitempty"`
	DateLastActivity time.Time `json:"date_last_activity"`
}

// DeviceOptionsUpdated is raised by the device registry when a device's
// custom name changes. The session core renames matching sessions.
type DeviceOptionsUpdated struct {
	DeviceID   string `json:"device_id"`
	CustomName string `json:"custom_name"`
}
