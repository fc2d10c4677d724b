package models

import "strings"

// ProfileUpdate is the whitelist of fields a user may change on their own
// profile. Nil fields are left untouched; anything else in the request body
// is ignored by the decoder.
type ProfileUpdate struct {
	FirstName       *string            `json:"firstName"`
	LastName        *string            `json:"lastName"`
	ExperienceLevel *ExperienceLevel   `json:"experienceLevel"`
	Preferences     *PreferencesUpdate `json:"preferences"`
}

// PreferencesUpdate is a partial Preferences.
type PreferencesUpdate struct {
	Notifications *NotificationsUpdate `json:"notifications"`
	Timezone      *string              `json:"timezone"`
	Language      *string              `json:"language"`
}

// NotificationsUpdate is a partial NotificationPreferences.
type NotificationsUpdate struct {
	Email     *bool `json:"email"`
	Push      *bool `json:"push"`
	Marketing *bool `json:"marketing"`
}

// Apply merges the update into a, leaving unspecified fields as they are.
func (u ProfileUpdate) Apply(a *Account) {
	if u.FirstName != nil {
		a.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		a.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.ExperienceLevel != nil {
		a.ExperienceLevel = *u.ExperienceLevel
	}
	p := u.Preferences
	if p == nil {
		return
	}
	if p.Timezone != nil {
		a.Preferences.Timezone = *p.Timezone
	}
	if p.Language != nil {
		a.Preferences.Language = *p.Language
	}
	if n := p.Notifications; n != nil {
		if n.Email != nil {
			a.Preferences.Notifications.Email = *n.Email
		}
		if n.Push != nil {
			a.Preferences.Notifications.Push = *n.Push
		}
		if n.Marketing != nil {
			a.Preferences.Notifications.Marketing = *n.Marketing
		}
	}
}
