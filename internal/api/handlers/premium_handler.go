package handlers

import (
	"net/http"

	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/auth"
)

// PremiumHandler serves subscription-gated content.
type PremiumHandler struct{}

// NewPremiumHandler creates a new PremiumHandler.
func NewPremiumHandler() *PremiumHandler {
	return &PremiumHandler{}
}

// Access confirms premium access and describes the caller's plan.
func (h *PremiumHandler) Access(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		RespondError(w, r, apperr.ErrAuthenticationRequired)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Premium access granted",
		"plan":         account.Subscription.Type,
		"subscription": account.Subscription,
		"expiresAt":    account.Subscription.EndDate,
	})
}
