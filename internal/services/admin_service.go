package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/rs/zerolog/log"
)

// SubscriptionInput sets an account's plan.
type SubscriptionInput struct {
	Type      models.Plan `json:"type"`
	IsActive  bool        `json:"isActive"`
	StartDate *time.Time  `json:"startDate"`
	EndDate   *time.Time  `json:"endDate"`
}

// Validate checks the plan and date range.
func (in SubscriptionInput) Validate() error {
	plans := make([]interface{}, len(models.Plans))
	for i, p := range models.Plans {
		plans[i] = p
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Type, validation.Required, validation.In(plans...).Error("invalid subscription type")),
		validation.Field(&in.EndDate, validation.By(func(interface{}) error {
			if in.StartDate != nil && in.EndDate != nil && !in.EndDate.After(*in.StartDate) {
				return errors.New("end date must be after start date")
			}
			return nil
		})),
	)
}

// AdminServiceProvider defines the interface for account administration.
type AdminServiceProvider interface {
	SetAccountStatus(ctx context.Context, actorID, id string, active bool) (*models.Account, error)
	SetAccountRole(ctx context.Context, actorID, id string, role models.Role) (*models.Account, error)
	UpdateSubscription(ctx context.Context, actorID, id string, in SubscriptionInput) (*models.Account, error)
	ListActiveSubscribers(ctx context.Context) ([]models.Account, error)
	ExpireSubscriptions(ctx context.Context) (int64, error)
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// AdminService provides privileged account operations.
type AdminService struct {
	store    store.AccountStore
	events   EventServiceProvider
	sessions SessionNotifier
	now      func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(st store.AccountStore, events EventServiceProvider, sessions SessionNotifier) *AdminService {
	if sessions == nil {
		sessions = noopSessions{}
	}
	return &AdminService{store: st, events: events, sessions: sessions, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// SetAccountStatus activates or deactivates an account. Deactivation ends
// the account's live sessions.
func (s *AdminService) SetAccountStatus(ctx context.Context, actorID, id string, active bool) (*models.Account, error) {
	if err := s.store.SetActive(ctx, id, active, s.now().UTC()); err != nil {
		return nil, notFound(err)
	}
	if !active {
		s.sessions.NotifyAccount(id, ActionSessionRevoked, map[string]string{"reason": "account_deactivated"})
	}
	recordEvent(ctx, s.events, EventAdminStatus, "warn", fmt.Sprintf("Account %s active=%t by %s", id, active, actorID), &id)
	return s.reload(ctx, id)
}

// SetAccountRole changes an account's role.
func (s *AdminService) SetAccountRole(ctx context.Context, actorID, id string, role models.Role) (*models.Account, error) {
	roles := make([]interface{}, len(models.Roles))
	for i, r := range models.Roles {
		roles[i] = r
	}
	if err := validation.Validate(role, validation.Required, validation.In(roles...)); err != nil {
		return nil, apperr.ErrValidation.WithFields([]apperr.FieldError{{Field: "role", Message: err.Error()}})
	}
	if err := s.store.SetRole(ctx, id, role, s.now().UTC()); err != nil {
		return nil, notFound(err)
	}
	recordEvent(ctx, s.events, EventAdminRole, "warn", fmt.Sprintf("Account %s role=%s by %s", id, role, actorID), &id)
	return s.reload(ctx, id)
}

// UpdateSubscription replaces an account's subscription.
func (s *AdminService) UpdateSubscription(ctx context.Context, actorID, id string, in SubscriptionInput) (*models.Account, error) {
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub := models.Subscription{Type: in.Type, IsActive: in.IsActive, StartDate: in.StartDate, EndDate: in.EndDate}
	if sub.IsActive && sub.StartDate == nil {
		sub.StartDate = &now
	}
	if err := s.store.UpdateSubscription(ctx, id, sub, now); err != nil {
		return nil, notFound(err)
	}
	recordEvent(ctx, s.events, EventAdminSubscription, "info",
		fmt.Sprintf("Account %s subscription=%s active=%t by %s", id, sub.Type, sub.IsActive, actorID), &id)
	return s.reload(ctx, id)
}

// ListActiveSubscribers returns accounts with a currently active subscription.
func (s *AdminService) ListActiveSubscribers(ctx context.Context) ([]models.Account, error) {
	return s.store.ListActiveSubscribers(ctx, s.now().UTC())
}

// ExpireSubscriptions deactivates subscriptions whose end date has passed.
func (s *AdminService) ExpireSubscriptions(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireSubscriptions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("Expired lapsed subscriptions")
		recordEvent(ctx, s.events, EventSubscriptionsExpired, "info", fmt.Sprintf("%d subscriptions expired", n), nil)
	}
	return n, nil
}

// PurgeExpiredResetTokens clears reset tokens past their expiry.
func (s *AdminService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.store.ClearExpiredResetTokens(ctx, s.now().UTC())
}

func (s *AdminService) reload(ctx context.Context, id string) (*models.Account, error) {
	a, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotFound.WithMessage("Account not found")
	}
	return err
}
