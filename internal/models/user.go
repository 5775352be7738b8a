// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package models

import "time"

// UserConfiguration is the per-user preference set the session core reads.
type UserConfiguration struct {
	RememberAudioSelections    bool `json:"remember_audio_selections"`
	RememberSubtitleSelections bool `json:"remember_subtitle_selections"`
	EnableNextEpisodeAutoPlay  bool `json:"enable_next_episode_auto_play"`
}

// UserPolicy is the per-user access policy the session core reads.
type UserPolicy struct {
	IsAdministrator                 bool     `json:"is_administrator"`
	EnableRemoteControlOfOtherUsers bool     `json:"enable_remote_control_of_other_users"`
	EnableAllDevices                bool     `json:"enable_all_devices"`
	EnabledDevices                  []string `json:"enabled_devices,omitempty"`

	// AccessSchedules constrain login to wall-clock windows. Empty means
	// always allowed.
	AccessSchedules []AccessSchedule `json:"access_schedules,omitempty"`
}

// AccessSchedule is one allowed wall-clock window, expressed in fractional
// hours of the day (for example 21.5 is 21:30).
type AccessSchedule struct {
	DayOfWeek time.Weekday `json:"day_of_week"`
	StartHour float64      `json:"start_hour"`
	EndHour   float64      `json:"end_hour"`
}

// User is the user-manager entity as seen by the session core.
type User struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Configuration    UserConfiguration `json:"configuration"`
	Policy           UserPolicy        `json:"policy"`
	LastActivityDate *time.Time        `json:"last_activity_date,omitempty"`
}

// IsParentalScheduleAllowed reports whether the user may be active at the
// given instant.
func (u *User) IsParentalScheduleAllowed(at time.Time) bool {
	if len(u.Policy.AccessSchedules) == 0 {
		return true
	}
	hour := float64(at.Hour()) + float64(at.Minute())/60
	for _, s := range u.Policy.AccessSchedules {
		if s.DayOfWeek == at.Weekday() && hour >= s.StartHour && hour <= s.EndHour {
			return true
		}
	}
	return false
}

// UserDTO is the outward-facing user snapshot returned from authentication.
type UserDTO struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	HasPassword      bool       `json:"has_password"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	PrimaryImageTag  string     `json:"primary_image_tag,omitempty"`
}
