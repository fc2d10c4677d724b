package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles HTTP requests for account authentication.
type AuthHandler struct {
	service    services.AccountServiceProvider
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewAuthHandler creates a new AuthHandler. secure marks the session cookie
// Secure, which production deployments require.
func NewAuthHandler(service services.AccountServiceProvider, cookieName string, secure bool) *AuthHandler {
	return &AuthHandler{service: service, cookieName: cookieName, secure: secure, now: time.Now}
}

type sessionResponse struct {
	Success   bool                 `json:"success"`
	Message   string               `json:"message,omitempty"`
	Token     string               `json:"token"`
	ExpiresIn int64                `json:"expiresIn"`
	ExpiresAt time.Time            `json:"expiresAt"`
	User      models.PublicAccount `json:"user"`
}

type userResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	User    models.PublicAccount `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Register handles new account registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload services.RegisterInput
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), payload)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed to register account")
		RespondError(w, r, err)
		return
	}
	h.startSession(w, http.StatusCreated, "Account registered successfully", res)
}

// Login handles credential authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload services.LoginInput
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	res, err := h.service.Login(r.Context(), payload)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	h.startSession(w, http.StatusOK, "Login successful", res)
}

// Logout clears the session cookie. Bearer tokens held by the client stay
// valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	if account := auth.AccountFromContext(r.Context()); account != nil {
		log.Info().Str("user_id", account.ID).Msg("Account logged out")
	}
	WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		RespondError(w, r, apperr.ErrAuthenticationRequired)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse{Success: true, User: account.Public(h.now())})
}

// UpdateProfile applies whitelisted profile changes to the authenticated
// account.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		RespondError(w, r, apperr.ErrAuthenticationRequired)
		return
	}
	var payload models.ProfileUpdate
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), account.ID, payload)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse{Success: true, Message: "Profile updated successfully", User: updated.Public(h.now())})
}

// ChangePassword replaces the authenticated account's password. The session
// cookie is cleared because the current token is no longer accepted.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		RespondError(w, r, apperr.ErrAuthenticationRequired)
		return
	}
	var payload services.ChangePasswordInput
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), account.ID, payload); err != nil {
		RespondError(w, r, err)
		return
	}
	h.clearCookie(w)
	WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password changed successfully. Please log in again"})
}

// ForgotPassword issues a password reset token for the given email.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), payload.Email); err != nil {
		RespondError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password reset token sent to email"})
}

// ResetPassword consumes a reset token from the URL and sets a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var payload struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		RespondError(w, r, err)
		return
	}

	res, err := h.service.ResetPassword(r.Context(), token, payload.Password)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	h.startSession(w, http.StatusOK, "Password reset successful", res)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, message string, res *services.AuthResult) {
	now := h.now()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    res.Token,
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	WriteJSON(w, status, sessionResponse{
		Success:   true,
		Message:   message,
		Token:     res.Token,
		ExpiresIn: int64(res.ExpiresIn / time.Second),
		ExpiresAt: res.ExpiresAt,
		User:      res.Account.Public(now),
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "none",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}
