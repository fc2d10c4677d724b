package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/rs/zerolog/log"
)

// referralAttempts bounds retries when a generated referral code collides.
const referralAttempts = 5

// RegisterInput is a registration request.
type RegisterInput struct {
	Username        string                 `json:"username"`
	Email           string                 `json:"email"`
	Password        string                 `json:"password"`
	FirstName       string                 `json:"firstName"`
	LastName        string                 `json:"lastName"`
	ExperienceLevel models.ExperienceLevel `json:"experienceLevel"`
	ReferralCode    string                 `json:"referralCode"`
}

// Normalize trims text fields and lower-cases the email.
func (in *RegisterInput) Normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)
	if in.ExperienceLevel == "" {
		in.ExperienceLevel = models.ExperienceBeginner
	}
}

// LoginInput is a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordInput is a password change request.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResult is returned by operations that start a session.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
	Account   *models.Account
}

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error)
	ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (*AuthResult, error)
}

// AccountService provides registration, login and profile management.
type AccountService struct {
	store    store.AccountStore
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	events   EventServiceProvider
	notifier ResetNotifier
	sessions SessionNotifier
	resetTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates a new AccountService.
func NewAccountService(st store.AccountStore, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, events EventServiceProvider, resetTTL time.Duration) *AccountService {
	return &AccountService{
		store:    st,
		hasher:   hasher,
		tokens:   tokens,
		events:   events,
		notifier: LogResetNotifier{},
		sessions: noopSessions{},
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// WithResetNotifier replaces the reset token delivery.
func (s *AccountService) WithResetNotifier(n ResetNotifier) *AccountService {
	s.notifier = n
	return s
}

// WithSessionNotifier sets where session revocations are pushed.
func (s *AccountService) WithSessionNotifier(n SessionNotifier) *AccountService {
	s.sessions = n
	return s
}

// WithClock replaces the service's time source.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// Register creates a new account and starts a session for it.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Normalize()
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, s.store.GetAccountByEmail, in.Email, apperr.ErrEmailExists); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, s.store.GetAccountByUsername, in.Username, apperr.ErrUsernameExists); err != nil {
		return nil, err
	}

	var referredBy *string
	if in.ReferralCode != "" {
		referrer, err := s.store.GetAccountByReferralCode(ctx, strings.ToUpper(in.ReferralCode))
		switch {
		case err == nil:
			referredBy = &referrer.ID
		case errors.Is(err, store.ErrNotFound):
			// Unknown codes are ignored.
		default:
			return nil, fmt.Errorf("resolve referral code: %w", err)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	changedAt := now.Add(-time.Second)
	account := &models.Account{
		ID:                uuid.NewString(),
		Username:          in.Username,
		Email:             in.Email,
		PasswordHash:      hash,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		ExperienceLevel:   in.ExperienceLevel,
		Role:              models.RoleUser,
		IsActive:          true,
		Subscription:      models.Subscription{Type: models.PlanFree},
		ReferredBy:        referredBy,
		PasswordChangedAt: &changedAt,
		Preferences:       models.DefaultPreferences(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.insertWithReferralCode(ctx, account); err != nil {
		return nil, err
	}

	if referredBy != nil {
		if err := s.store.IncrementReferralCount(ctx, *referredBy, now); err != nil {
			log.Warn().Err(err).Str("referrer_id", *referredBy).Msg("Failed to credit referral")
		}
	}

	recordEvent(ctx, s.events, EventRegister, "info", "Account registered: "+account.Username, &account.ID)
	log.Info().Str("user_id", account.ID).Str("username", account.Username).Msg("Account registered")

	return s.startSession(account)
}

func (s *AccountService) ensureAvailable(ctx context.Context, find func(context.Context, string) (*models.Account, error), value string, conflict *apperr.Error) error {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return conflict
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check availability: %w", err)
	}
}

// insertWithReferralCode creates the account, regenerating the referral code
// on collision. Username and email conflicts that slipped past the
// availability checks surface as AlreadyExists.
func (s *AccountService) insertWithReferralCode(ctx context.Context, account *models.Account) error {
	for attempt := 0; attempt < referralAttempts; attempt++ {
		code, err := GenerateReferralCode(account.Username, s.now())
		if err != nil {
			return fmt.Errorf("generate referral code: %w", err)
		}
		account.ReferralCode = code

		err = s.store.CreateAccount(ctx, account)
		if err == nil {
			return nil
		}
		dup, ok := store.AsDuplicate(err)
		if !ok {
			return err
		}
		if dup.Field != "referral_code" {
			return apperr.AlreadyExists(dup.Field)
		}
	}
	return fmt.Errorf("could not allocate a unique referral code after %d attempts", referralAttempts)
}

// Login verifies credentials and starts a session. Unknown emails and wrong
// passwords produce the same error.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}

	account, err := s.store.GetAccountByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find account: %w", err)
		}
		// Spend the same bcrypt work as a real comparison.
		s.hasher.Verify(in.Password, s.dummy())
		recordEvent(ctx, s.events, EventLoginFailed, "warn", "Login failed for unknown email", nil)
		return nil, apperr.ErrInvalidCredentials
	}

	// The password is checked before the active flag so deactivation is only
	// reported to callers who know the password.
	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		recordEvent(ctx, s.events, EventLoginFailed, "warn", "Login failed: wrong password", &account.ID)
		log.Warn().Str("user_id", account.ID).Msg("Failed authentication attempt")
		return nil, apperr.ErrInvalidCredentials
	}
	if !account.IsActive {
		recordEvent(ctx, s.events, EventLoginFailed, "warn", "Login refused: account deactivated", &account.ID)
		return nil, apperr.ErrAccountDeactivated
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}
	account.LastLogin = &now

	recordEvent(ctx, s.events, EventLogin, "info", "Login succeeded", &account.ID)
	return s.startSession(account)
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			log.Error().Err(err).Msg("Failed to prepare dummy password hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AccountService) startSession(account *models.Account) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, ExpiresIn: s.tokens.TTL(), Account: account}, nil
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("Account not found")
	}
	return account, err
}

// UpdateProfile applies the whitelisted profile fields.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error) {
	if err := validationError(validateProfileUpdate(update)); err != nil {
		return nil, err
	}
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(account)
	account.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProfile(ctx, account); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.sessions.NotifyAccount(account.ID, ActionProfileUpdated, account.Public(s.now()))
	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
// Tokens issued before the change stop authenticating.
func (s *AccountService) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	if err := validationError(in.Validate()); err != nil {
		return err
	}
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, account.PasswordHash) {
		return apperr.ErrInvalidCurrentPassword
	}
	if err := s.setPassword(ctx, account, in.NewPassword); err != nil {
		return err
	}
	recordEvent(ctx, s.events, EventPasswordChanged, "info", "Password changed", &account.ID)
	return nil
}

func (s *AccountService) setPassword(ctx context.Context, account *models.Account, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	changedAt := s.now().UTC().Add(-time.Second)
	if err := s.store.UpdatePassword(ctx, account.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	account.PasswordHash = hash
	account.PasswordChangedAt = &changedAt
	account.PasswordResetToken = ""
	account.PasswordResetExpires = nil

	s.sessions.NotifyAccount(account.ID, ActionSessionRevoked, map[string]string{"reason": "password_changed"})
	return nil
}

// ForgotPassword issues a single-use reset token for the account with email
// and hands it to the ResetNotifier. Any previous token is replaced.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validationError(validateEmail(email)); err != nil {
		return err
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return fmt.Errorf("find account: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(s.resetTTL)
	if err := s.store.SetPasswordResetToken(ctx, account.ID, hashResetToken(token), expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, account, token); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	recordEvent(ctx, s.events, EventResetRequested, "info", "Password reset requested", &account.ID)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and starts a
// fresh session.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	if err := validationError(validateNewPassword(newPassword)); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperr.ErrInvalidResetToken
	}
	account, err := s.store.GetAccountByResetToken(ctx, hashResetToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	if !account.IsActive {
		return nil, apperr.ErrAccountDeactivated
	}
	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return nil, err
	}
	recordEvent(ctx, s.events, EventPasswordReset, "info", "Password reset completed", &account.ID)

	// changedAt is backdated one second, so this token is not stale.
	return s.startSession(account)
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
