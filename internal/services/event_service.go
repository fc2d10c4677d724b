package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/rs/zerolog/log"
)

// Event types recorded by the application.
const (
	EventRegister             = "auth.register"
	EventLogin                = "auth.login"
	EventLoginFailed          = "auth.login.failed"
	EventPasswordChanged      = "auth.password.changed"
	EventResetRequested       = "auth.password.reset_requested"
	EventPasswordReset        = "auth.password.reset"
	EventRateLimited          = "security.rate_limited"
	EventSuspiciousInput      = "security.suspicious_input"
	EventBlockedOrigin        = "security.cors_blocked"
	EventAdminStatus          = "admin.account.status"
	EventAdminRole            = "admin.account.role"
	EventAdminSubscription    = "admin.account.subscription"
	EventSubscriptionsExpired = "system.subscriptions.expired"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, accountID *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService records security events, stamping them with the client
// information carried by the request context.
type EventService struct {
	store store.EventStore
	now   func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(st store.EventStore) *EventService {
	return &EventService{store: st, now: time.Now}
}

// CreateEvent logs a new event to the store.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, accountID *string) error {
	client := ClientInfoFromContext(ctx)
	event := models.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		AccountID: accountID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	return s.store.CreateEvent(ctx, &event)
}

// GetRecentEvents retrieves the most recent events.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	return s.store.ListEvents(ctx, limit)
}

// recordEvent stores an event and only logs failures: auditing must never
// fail the operation being audited.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType, level, message string, accountID *string) {
	if events == nil {
		return
	}
	if err := events.CreateEvent(ctx, eventType, level, message, accountID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record security event")
	}
}

type clientInfoKey struct{}

// WithClientInfo attaches the caller's address and user agent to ctx.
func WithClientInfo(ctx context.Context, info models.ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFromContext returns the client info attached by WithClientInfo.
func ClientInfoFromContext(ctx context.Context) models.ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(models.ClientInfo)
	return info
}
