package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/services"
)

// AdminHandler handles privileged account management.
type AdminHandler struct {
	service services.AdminServiceProvider
	now     func() time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service services.AdminServiceProvider) *AdminHandler {
	return &AdminHandler{service: service, now: time.Now}
}

// ListSubscribers returns accounts with an active subscription.
func (h *AdminHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListActiveSubscribers(r.Context())
	if err != nil {
		RespondError(w, r, err)
		return
	}
	now := h.now()
	users := make([]models.PublicAccount, 0, len(accounts))
	for i := range accounts {
		users = append(users, accounts[i].Public(now))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(users),
		"users":   users,
	})
}

// SetStatus activates or deactivates an account.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsActive *bool `json:"isActive"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}
	if payload.IsActive == nil {
		RespondError(w, r, apperr.ErrValidation.WithFields([]apperr.FieldError{{Field: "isActive", Message: "cannot be blank"}}))
		return
	}

	account, err := h.service.SetAccountStatus(r.Context(), actorID(r), chi.URLParam(r, "id"), *payload.IsActive)
	h.respondAccount(w, r, account, err)
}

// SetRole changes an account's role.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role models.Role `json:"role"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	account, err := h.service.SetAccountRole(r.Context(), actorID(r), chi.URLParam(r, "id"), payload.Role)
	h.respondAccount(w, r, account, err)
}

// UpdateSubscription replaces an account's subscription.
func (h *AdminHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var payload services.SubscriptionInput
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	account, err := h.service.UpdateSubscription(r.Context(), actorID(r), chi.URLParam(r, "id"), payload)
	h.respondAccount(w, r, account, err)
}

func (h *AdminHandler) respondAccount(w http.ResponseWriter, r *http.Request, account *models.Account, err error) {
	if err != nil {
		RespondError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse{Success: true, Message: "Account updated", User: account.Public(h.now())})
}

func actorID(r *http.Request) string {
	if a := auth.AccountFromContext(r.Context()); a != nil {
		return a.ID
	}
	return ""
}
