package models

import (
	"strings"
	"time"
)

// ExperienceLevel is the trader's self-declared experience.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
	ExperienceProfessional ExperienceLevel = "professional"
)

// ExperienceLevels lists every accepted ExperienceLevel.
var ExperienceLevels = []ExperienceLevel{ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced, ExperienceProfessional}

// Role controls access to role-gated routes.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// Roles lists every accepted Role.
var Roles = []Role{RoleUser, RolePremium, RoleAdmin}

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanVIP     Plan = "vip"
)

// Plans lists every accepted Plan.
var Plans = []Plan{PlanFree, PlanPremium, PlanVIP}

// Languages accepted for Preferences.Language.
var Languages = []string{"en", "es", "fr", "de", "pt"}

// Subscription describes the account's paid plan.
type Subscription struct {
	Type      Plan       `json:"type" bson:"type"`
	StartDate *time.Time `json:"startDate,omitempty" bson:"start_date,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty" bson:"end_date,omitempty"`
	IsActive  bool       `json:"isActive" bson:"is_active"`
}

// NotificationPreferences toggles the notification channels.
type NotificationPreferences struct {
	Email     bool `json:"email" bson:"email"`
	Push      bool `json:"push" bson:"push"`
	Marketing bool `json:"marketing" bson:"marketing"`
}

// Preferences holds user-editable settings.
type Preferences struct {
	Notifications NotificationPreferences `json:"notifications" bson:"notifications"`
	Timezone      string                  `json:"timezone" bson:"timezone"`
	Language      string                  `json:"language" bson:"language"`
}

// DefaultPreferences returns the settings a new account starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true, Push: true, Marketing: false},
		Timezone:      "UTC",
		Language:      "en",
	}
}

// Account represents a registered user of the site.
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Username     string `json:"username" bson:"username"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"password_hash"` // Never expose this to the client

	FirstName       string          `json:"firstName" bson:"first_name"`
	LastName        string          `json:"lastName" bson:"last_name"`
	ProfilePicture  string          `json:"profilePicture" bson:"profile_picture"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel" bson:"experience_level"`

	Role            Role `json:"role" bson:"role"`
	IsActive        bool `json:"isActive" bson:"is_active"`
	IsEmailVerified bool `json:"isEmailVerified" bson:"is_email_verified"`

	Subscription Subscription `json:"subscription" bson:"subscription"`

	ReferralCode  string  `json:"referralCode" bson:"referral_code"`
	ReferredBy    *string `json:"referredBy,omitempty" bson:"referred_by,omitempty"`
	ReferralCount int     `json:"referralCount" bson:"referral_count"`

	LastLogin            *time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
	PasswordChangedAt    *time.Time `json:"-" bson:"password_changed_at,omitempty"`
	PasswordResetToken   string     `json:"-" bson:"password_reset_token,omitempty"` // sha256 hex of the emailed token
	PasswordResetExpires *time.Time `json:"-" bson:"password_reset_expires,omitempty"`

	Preferences Preferences `json:"preferences" bson:"preferences"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HasActiveSubscription reports whether the subscription grants premium
// access at the given instant. An open-ended subscription never lapses.
func (a *Account) HasActiveSubscription(now time.Time) bool {
	if !a.Subscription.IsActive {
		return false
	}
	return a.Subscription.EndDate == nil || now.Before(*a.Subscription.EndDate)
}

// PasswordChangedAfter reports whether the password changed after a token
// issued at iat. Comparison is at whole-second resolution, matching the JWT
// iat claim.
func (a *Account) PasswordChangedAfter(iat time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < a.PasswordChangedAt.Unix()
}

// PublicAccount is the outward view of an Account with derived fields
// resolved. Secrets are excluded by the Account json tags.
type PublicAccount struct {
	Account
	FullName              string `json:"fullName"`
	HasActiveSubscription bool   `json:"hasActiveSubscription"`
}

// Public builds the sanitized view evaluated at now.
func (a *Account) Public(now time.Time) PublicAccount {
	c := *a
	c.PasswordHash = ""
	c.PasswordResetToken = ""
	c.PasswordResetExpires = nil
	return PublicAccount{
		Account:               c,
		FullName:              a.FullName(),
		HasActiveSubscription: a.HasActiveSubscription(now),
	}
}
