package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/rs/zerolog/log"
)

// AccountFinder loads the account a token refers to.
type AccountFinder interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
}

// ErrorWriter renders a middleware failure to the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator resolves the caller of a request from its session token.
type Authenticator struct {
	tokens     *TokenIssuer
	accounts   AccountFinder
	cookieName string
	onError    ErrorWriter
	now        func() time.Time
}

// NewAuthenticator creates an Authenticator. onError renders rejected
// requests; it must write a response.
func NewAuthenticator(tokens *TokenIssuer, accounts AccountFinder, cookieName string, onError ErrorWriter) *Authenticator {
	if onError == nil {
		onError = func(w http.ResponseWriter, r *http.Request, err error) {
			status := http.StatusUnauthorized
			if e, ok := apperr.As(err); ok {
				status = e.Status
			}
			http.Error(w, http.StatusText(status), status)
		}
	}
	return &Authenticator{
		tokens:     tokens,
		accounts:   accounts,
		cookieName: cookieName,
		onError:    onError,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for subscription checks.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// TokenFromRequest returns the bearer token from the Authorization header,
// or the session cookie when the header carries no bearer token.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate verifies the request's token and loads its account.
func (a *Authenticator) Authenticate(r *http.Request) (*models.Account, *Claims, error) {
	tokenStr := a.TokenFromRequest(r)
	if tokenStr == "" {
		return nil, nil, apperr.ErrAuthenticationRequired
	}

	claims, err := a.tokens.Verify(tokenStr)
	if err != nil {
		return nil, nil, err
	}

	account, err := a.accounts.GetAccountByID(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("load account %s: %w", claims.AccountID, err)
	}
	if !account.IsActive {
		return nil, nil, apperr.ErrAccountDeactivated
	}
	if account.PasswordChangedAfter(claims.IssuedAt.Time) {
		return nil, nil, apperr.ErrPasswordChanged
	}
	return account, claims, nil
}

// Require rejects requests without a valid session and attaches the account
// to the request context otherwise.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, claims, err := a.Authenticate(r)
		if err != nil {
			a.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account, claims)))
	})
}

// Optional attaches the account when the request carries a valid session and
// proceeds anonymously on any failure.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, claims, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, apperr.ErrAuthenticationRequired) {
				log.Debug().Err(err).Msg("Optional authentication failed, continuing anonymously")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account, claims)))
	})
}

// RequireRole only admits accounts holding one of roles. It must run after
// Require.
func (a *Authenticator) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := AccountFromContext(r.Context())
			if account == nil {
				a.onError(w, r, apperr.ErrAuthenticationRequired)
				return
			}
			if !slices.Contains(roles, account.Role) {
				a.onError(w, r, apperr.ErrInsufficientPermissions.WithMessage(
					fmt.Sprintf("Access denied. %s role is not authorized to access this resource", account.Role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSubscription only admits accounts with a currently active
// subscription. It must run after Require.
func (a *Authenticator) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := AccountFromContext(r.Context())
		if account == nil {
			a.onError(w, r, apperr.ErrAuthenticationRequired)
			return
		}
		if !account.HasActiveSubscription(a.now()) {
			a.onError(w, r, apperr.ErrPremiumRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
