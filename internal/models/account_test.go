package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasActiveSubscription(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{name: "inactive", sub: Subscription{Type: PlanPremium, IsActive: false}, want: false},
		{name: "open ended", sub: Subscription{Type: PlanPremium, IsActive: true}, want: true},
		{name: "not yet ended", sub: Subscription{Type: PlanVIP, IsActive: true, EndDate: &future}, want: true},
		{name: "lapsed", sub: Subscription{Type: PlanVIP, IsActive: true, EndDate: &past}, want: false},
		{name: "ends exactly now", sub: Subscription{Type: PlanVIP, IsActive: true, EndDate: &now}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Subscription: tt.sub}
			assert.Equal(t, tt.want, a.HasActiveSubscription(now))
		})
	}
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&Account{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&Account{FirstName: "Ada"}).FullName())
}

func TestPasswordChangedAfterUsesWholeSeconds(t *testing.T) {
	changed := time.Date(2025, 1, 10, 12, 0, 5, 900_000_000, time.UTC)
	a := &Account{PasswordChangedAt: &changed}

	assert.True(t, a.PasswordChangedAfter(time.Unix(changed.Unix()-1, 0)))
	assert.False(t, a.PasswordChangedAfter(time.Unix(changed.Unix(), 0)))
	assert.False(t, a.PasswordChangedAfter(changed.Add(time.Minute)))
	assert.False(t, (&Account{}).PasswordChangedAfter(time.Unix(0, 0)))
}

func TestPublicOmitsSecrets(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	a := &Account{
		ID:                   "a1",
		Username:             "trader1",
		PasswordHash:         "$2a$12$secret",
		PasswordResetToken:   "deadbeef",
		PasswordResetExpires: &exp,
		FirstName:            "Tom",
		LastName:             "Trader",
		Subscription:         Subscription{Type: PlanFree},
	}

	raw, err := json.Marshal(a.Public(time.Now()))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Tom Trader", out["fullName"])
	assert.Equal(t, false, out["hasActiveSubscription"])
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "deadbeef")
	assert.NotContains(t, out, "passwordHash")
	assert.Equal(t, "$2a$12$secret", a.PasswordHash, "original account must be untouched")
}

func TestProfileUpdateApply(t *testing.T) {
	a := &Account{FirstName: "Old", LastName: "Name", ExperienceLevel: ExperienceBeginner, Preferences: DefaultPreferences()}
	first := "  New "
	lvl := ExperienceAdvanced
	lang := "de"
	marketing := true

	ProfileUpdate{
		FirstName:       &first,
		ExperienceLevel: &lvl,
		Preferences: &PreferencesUpdate{
			Language:      &lang,
			Notifications: &NotificationsUpdate{Marketing: &marketing},
		},
	}.Apply(a)

	assert.Equal(t, "New", a.FirstName)
	assert.Equal(t, "Name", a.LastName)
	assert.Equal(t, ExperienceAdvanced, a.ExperienceLevel)
	assert.Equal(t, "de", a.Preferences.Language)
	assert.Equal(t, "UTC", a.Preferences.Timezone)
	assert.True(t, a.Preferences.Notifications.Email)
	assert.True(t, a.Preferences.Notifications.Marketing)
}
