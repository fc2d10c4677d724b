package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesCopies(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("login: %w", ErrInvalidToken.WithMessage("bad signature").Wrap(cause))

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestAccountAndUserNotFoundAreDistinct(t *testing.T) {
	assert.Equal(t, ErrAccountNotFound.Code, ErrUserNotFound.Code)
	assert.NotErrorIs(t, ErrAccountNotFound, ErrUserNotFound)
	assert.Equal(t, http.StatusUnauthorized, ErrAccountNotFound.Status)
	assert.Equal(t, http.StatusNotFound, ErrUserNotFound.Status)
}

func TestAs(t *testing.T) {
	e, ok := As(fmt.Errorf("wrapped: %w", ErrRateLimited))
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestAlreadyExists(t *testing.T) {
	assert.Same(t, ErrEmailExists, AlreadyExists("email"))
	assert.Same(t, ErrUsernameExists, AlreadyExists("username"))

	e := AlreadyExists("referral_code")
	assert.Equal(t, "REFERRAL_CODE_ALREADY_EXISTS", e.Code)
	assert.Equal(t, http.StatusBadRequest, e.Status)
}

func TestWithFieldsDoesNotMutateSentinel(t *testing.T) {
	e := ErrValidation.WithFields([]FieldError{{Field: "email", Message: "must be a valid email address"}})
	assert.Len(t, e.Fields, 1)
	assert.Empty(t, ErrValidation.Fields)
}
