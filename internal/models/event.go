package models

import "time"

// Event is a recorded security or account activity.
type Event struct {
	ID        string    `json:"id" bson:"_id"`
	Type      string    `json:"type" bson:"type"`   // e.g., "auth.login", "security.rate_limited"
	Level     string    `json:"level" bson:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message" bson:"message"`
	AccountID *string   `json:"accountId,omitempty" bson:"account_id,omitempty"` // Nil for anonymous requests
	IP        string    `json:"ip,omitempty" bson:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// ClientInfo identifies the caller of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
}
