package services

import (
	"context"

	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ResetNotifier delivers a password reset token to the account owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, account *models.Account, token string) error
}

// LogResetNotifier writes reset tokens to the log instead of mailing them.
// It stands in until an email transport is wired.
type LogResetNotifier struct{}

func (LogResetNotifier) SendPasswordReset(ctx context.Context, account *models.Account, token string) error {
	log.Info().
		Str("user_id", account.ID).
		Str("email", account.Email).
		Str("reset_path", "/api/auth/reset-password/"+token).
		Msg("Password reset requested")
	return nil
}

// SessionNotifier pushes account-scoped messages to connected clients.
type SessionNotifier interface {
	NotifyAccount(accountID, action string, payload interface{})
}

// Actions pushed to an account's live sessions.
const (
	ActionSessionRevoked = "session.revoked"
	ActionProfileUpdated = "profile.updated"
)

type noopSessions struct{}

func (noopSessions) NotifyAccount(string, string, interface{}) {}
