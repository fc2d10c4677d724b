package auth

import (
	"context"

	"github.com/isdelr/traderlibrary-be/internal/models"
)

type contextKey string

const (
	accountKey = contextKey("account")
	claimsKey  = contextKey("claims")
)

// WithAccount returns a copy of ctx carrying the authenticated account and
// the claims of the token that authenticated it.
func WithAccount(ctx context.Context, a *models.Account, c *Claims) context.Context {
	ctx = context.WithValue(ctx, accountKey, a)
	return context.WithValue(ctx, claimsKey, c)
}

// AccountFromContext returns the authenticated account, or nil for
// anonymous requests.
func AccountFromContext(ctx context.Context) *models.Account {
	a, _ := ctx.Value(accountKey).(*models.Account)
	return a
}

// ClaimsFromContext returns the verified token claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
