// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

import "time"

// AuthenticationRequest carries client credentials and device identity for
// session authentication.
type AuthenticationRequest struct {
	Username string `json:"username"`
	UserID   string `json:"user_id,omitempty"`

	Password     string `json:"password,omitempty"`
	PasswordSha1 string `json:"password_sha1,omitempty"`
	PasswordMd5  string `json:"password_md5,omitempty"`

	App            string `json:"app" validate:"required"`
	AppVersion     string `json:"app_version" validate:"required"`
	DeviceID       string `json:"device_id" validate:"required"`
	DeviceName     string `json:"device_name" validate:"required"`
	RemoteEndPoint string `json:"remote_end_point"`
}

// AuthenticationResult is the outcome of a successful authentication.
type AuthenticationResult struct {
	User        *UserDTO     `json:"user"`
	SessionInfo *SessionInfo `json:"session_info"`
	AccessToken string       `json:"access_token"`
	ServerID    string       `json:"server_id"`
}

// AuthenticationInfo is one persisted access-token row.
type AuthenticationInfo struct {
	ID          string     `json:"id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
	DeviceName  string     `json:"device_name"`
	AppName     string     `json:"app_name"`
	AppVersion  string     `json:"app_version"`
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
	IsActive    bool       `json:"is_active"`
	DateCreated time.Time  `json:"date_created"`
	DateRevoked *time.Time `json:"date_revoked,omitempty"`
}

// AuthenticationInfoQuery filters persisted token rows. Zero-valued fields
// are ignored; IsActive uses a pointer so false can be queried explicitly.
type AuthenticationInfoQuery struct {
	AccessToken string
	UserID      string
	DeviceID    string
	IsActive    *bool
	Limit       int
}

// QueryResult pairs a page of items with the unpaged total.
type QueryResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}
