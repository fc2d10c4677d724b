// Package store persists accounts and security events. Two backends share
// the Store interface: SQLStore (sqlite or postgres) and MongoStore.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/models"
)

// ErrNotFound is returned when no record matches a lookup or update.
var ErrNotFound = errors.New("record not found")

// DuplicateError reports a unique index violation on Field (username, email
// or referral_code).
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// AsDuplicate extracts a *DuplicateError from err's chain.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var d *DuplicateError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// AccountStore is the credential store.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error)
	// GetAccountByResetToken finds the account holding tokenHash whose reset
	// token has not expired at now.
	GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)

	IncrementReferralCount(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, a *models.Account) error
	// UpdatePassword stores a new hash and change time and clears any
	// pending reset token.
	UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	SetRole(ctx context.Context, id string, role models.Role, at time.Time) error
	UpdateSubscription(ctx context.Context, id string, sub models.Subscription, at time.Time) error

	ListActiveSubscribers(ctx context.Context, now time.Time) ([]models.Account, error)
	// ExpireSubscriptions deactivates subscriptions whose end date is not
	// after now and returns how many changed.
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// EventStore records security events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	AccountStore
	EventStore
	Ping(ctx context.Context) error
	Close() error
}
