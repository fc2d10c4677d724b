// Package apperr defines the error taxonomy shared by services, middleware
// and HTTP handlers. Errors carry a stable machine code and an HTTP status.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error.
type Error struct {
	Code    string
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

// New creates a classified error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code and status, so
// errors.Is(err, ErrInvalidToken) holds for copies produced by WithMessage,
// WithFields or Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Status == e.Status
}

// WithMessage returns a copy with a different human-readable message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// WithFields returns a copy carrying per-field details.
func (e *Error) WithFields(fields []FieldError) *Error {
	c := *e
	c.Fields = fields
	return &c
}

// Wrap returns a copy with err attached as the cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AlreadyExists builds the conflict error for a unique field, e.g.
// EMAIL_ALREADY_EXISTS.
func AlreadyExists(field string) *Error {
	switch field {
	case "email":
		return ErrEmailExists
	case "username":
		return ErrUsernameExists
	}
	return New(strings.ToUpper(field)+"_ALREADY_EXISTS", http.StatusBadRequest, field+" already exists")
}

var (
	ErrValidation     = New("VALIDATION_ERROR", http.StatusBadRequest, "Validation failed")
	ErrEmailExists    = New("EMAIL_ALREADY_EXISTS", http.StatusBadRequest, "User with this email already exists")
	ErrUsernameExists = New("USERNAME_ALREADY_EXISTS", http.StatusBadRequest, "Username is already taken")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "Invalid email or password")
	ErrAccountDeactivated = New("ACCOUNT_DEACTIVATED", http.StatusUnauthorized, "Account has been deactivated")

	ErrAuthenticationRequired = New("AUTHENTICATION_REQUIRED", http.StatusUnauthorized, "Access denied. No token provided")
	ErrInvalidToken           = New("INVALID_TOKEN", http.StatusUnauthorized, "Invalid token")
	ErrTokenExpired           = New("TOKEN_EXPIRED", http.StatusUnauthorized, "Token has expired")
	ErrPasswordChanged        = New("PASSWORD_CHANGED", http.StatusUnauthorized, "Password was changed recently. Please log in again")
	ErrAccountNotFound        = New("USER_NOT_FOUND", http.StatusUnauthorized, "User belonging to this token no longer exists")

	ErrInsufficientPermissions = New("INSUFFICIENT_PERMISSIONS", http.StatusForbidden, "You do not have permission to perform this action")
	ErrPremiumRequired         = New("PREMIUM_REQUIRED", http.StatusForbidden, "An active subscription is required to access this resource")

	ErrUserNotFound           = New("USER_NOT_FOUND", http.StatusNotFound, "User not found with this email")
	ErrInvalidCurrentPassword = New("INVALID_CURRENT_PASSWORD", http.StatusBadRequest, "Current password is incorrect")
	ErrInvalidResetToken      = New("INVALID_RESET_TOKEN", http.StatusBadRequest, "Password reset token is invalid or has expired")

	ErrInvalidInput     = New("INVALID_INPUT", http.StatusBadRequest, "Invalid input")
	ErrInvalidBody      = New("INVALID_REQUEST_BODY", http.StatusBadRequest, "Invalid request body")
	ErrSuspiciousInput  = New("SUSPICIOUS_INPUT", http.StatusBadRequest, "Request contains disallowed content")
	ErrPayloadTooLarge  = New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "Request body too large")
	ErrRateLimited      = New("RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, "Too many requests, please try again later")
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "Resource not found")
	ErrRouteNotFound    = New("ROUTE_NOT_FOUND", http.StatusNotFound, "Route not found")
	ErrMethodNotAllowed = New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "Method not allowed")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "Internal server error")
)
