package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/database"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, first_name, last_name, profile_picture,
	experience_level, role, is_active, is_email_verified,
	subscription_type, subscription_start, subscription_end, subscription_active,
	referral_code, referred_by, referral_count,
	last_login, password_changed_at, password_reset_token, password_reset_expires,
	notify_email, notify_push, notify_marketing, timezone, language,
	created_at, updated_at`

// SQLStore implements Store on top of database/sql for SQLite and
// PostgreSQL. Queries are written with ? placeholders and rebound for the
// dialect. Timestamps are stored as unix milliseconds.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// CreateAccount inserts a new account. Unique violations are reported as
// *DuplicateError.
func (s *SQLStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.ProfilePicture,
		string(a.ExperienceLevel), string(a.Role), a.IsActive, a.IsEmailVerified,
		string(a.Subscription.Type), nullMillis(a.Subscription.StartDate), nullMillis(a.Subscription.EndDate), a.Subscription.IsActive,
		a.ReferralCode, nullString(a.ReferredBy), a.ReferralCount,
		nullMillis(a.LastLogin), nullMillis(a.PasswordChangedAt), nullString(&a.PasswordResetToken), nullMillis(a.PasswordResetExpires),
		a.Preferences.Notifications.Email, a.Preferences.Notifications.Push, a.Preferences.Notifications.Marketing,
		a.Preferences.Timezone, a.Preferences.Language,
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if field, ok := duplicateField(err); ok {
			return &DuplicateError{Field: field, Err: err}
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves a single account by its ID.
func (s *SQLStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

// GetAccountByEmail retrieves a single account by its normalized email.
func (s *SQLStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "email = ?", email)
}

// GetAccountByUsername retrieves a single account by its username.
func (s *SQLStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, "username = ?", username)
}

// GetAccountByReferralCode retrieves the account owning a referral code.
func (s *SQLStore) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return s.getAccount(ctx, "referral_code = ?", code)
}

// GetAccountByResetToken retrieves the account holding an unexpired reset token.
func (s *SQLStore) GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	return s.getAccount(ctx, "password_reset_token = ? AND password_reset_expires > ?", tokenHash, now.UnixMilli())
}

func (s *SQLStore) getAccount(ctx context.Context, where string, args ...any) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+accountColumns+" FROM accounts WHERE "+where), args...)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// IncrementReferralCount atomically bumps the referrer's counter.
func (s *SQLStore) IncrementReferralCount(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "UPDATE accounts SET referral_count = referral_count + 1, updated_at = ? WHERE id = ?",
		at.UnixMilli(), id)
}

// UpdateProfile writes the user-editable profile fields of a.
func (s *SQLStore) UpdateProfile(ctx context.Context, a *models.Account) error {
	return s.execOne(ctx, `UPDATE accounts SET first_name = ?, last_name = ?, experience_level = ?,
		notify_email = ?, notify_push = ?, notify_marketing = ?, timezone = ?, language = ?, updated_at = ?
		WHERE id = ?`,
		a.FirstName, a.LastName, string(a.ExperienceLevel),
		a.Preferences.Notifications.Email, a.Preferences.Notifications.Push, a.Preferences.Notifications.Marketing,
		a.Preferences.Timezone, a.Preferences.Language, a.UpdatedAt.UnixMilli(), a.ID)
}

// UpdatePassword stores a new password hash and clears any reset token.
func (s *SQLStore) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	return s.execOne(ctx, `UPDATE accounts SET password_hash = ?, password_changed_at = ?,
		password_reset_token = NULL, password_reset_expires = NULL, updated_at = ? WHERE id = ?`,
		hash, changedAt.UnixMilli(), changedAt.UnixMilli(), id)
}

// SetPasswordResetToken replaces any pending reset token.
func (s *SQLStore) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.execOne(ctx, "UPDATE accounts SET password_reset_token = ?, password_reset_expires = ? WHERE id = ?",
		tokenHash, expires.UnixMilli(), id)
}

// TouchLastLogin records a successful login.
func (s *SQLStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "UPDATE accounts SET last_login = ? WHERE id = ?", at.UnixMilli(), id)
}

// SetActive activates or deactivates an account.
func (s *SQLStore) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return s.execOne(ctx, "UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?", active, at.UnixMilli(), id)
}

// SetRole changes an account's role.
func (s *SQLStore) SetRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	return s.execOne(ctx, "UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?", string(role), at.UnixMilli(), id)
}

// UpdateSubscription replaces the account's subscription.
func (s *SQLStore) UpdateSubscription(ctx context.Context, id string, sub models.Subscription, at time.Time) error {
	return s.execOne(ctx, `UPDATE accounts SET subscription_type = ?, subscription_start = ?, subscription_end = ?,
		subscription_active = ?, updated_at = ? WHERE id = ?`,
		string(sub.Type), nullMillis(sub.StartDate), nullMillis(sub.EndDate), sub.IsActive, at.UnixMilli(), id)
}

// ListActiveSubscribers returns accounts whose subscription is active at now,
// newest first.
func (s *SQLStore) ListActiveSubscribers(ctx context.Context, now time.Time) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts
		WHERE subscription_active = ? AND (subscription_end IS NULL OR subscription_end > ?)
		ORDER BY created_at DESC`), true, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ExpireSubscriptions deactivates subscriptions that ended at or before now.
func (s *SQLStore) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE accounts SET subscription_active = ?, updated_at = ?
		WHERE subscription_active = ? AND subscription_end IS NOT NULL AND subscription_end <= ?`),
		false, now.UnixMilli(), true, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearExpiredResetTokens drops reset tokens past their expiry.
func (s *SQLStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE accounts SET password_reset_token = NULL, password_reset_expires = NULL
		WHERE password_reset_expires IS NOT NULL AND password_reset_expires <= ?`), now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateEvent logs a new security event.
func (s *SQLStore) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO security_events
		(id, type, level, message, account_id, ip, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Type, e.Level, e.Message, nullString(e.AccountID), e.IP, e.UserAgent, e.CreatedAt.UnixMilli())
	return err
}

// ListEvents retrieves the most recent security events.
func (s *SQLStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, type, level, message, account_id, ip, user_agent, created_at
		FROM security_events ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e         models.Event
			accountID sql.NullString
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &e.Message, &accountID, &e.IP, &e.UserAgent, &created); err != nil {
			return nil, err
		}
		if accountID.Valid {
			e.AccountID = &accountID.String
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// execOne runs an update that must touch exactly one existing row.
func (s *SQLStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != database.Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a                                  models.Account
		experience, role, plan             string
		subStart, subEnd                   sql.NullInt64
		lastLogin, changedAt, resetExpires sql.NullInt64
		referredBy, resetToken             sql.NullString
		createdAt, updatedAt               int64
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.ProfilePicture,
		&experience, &role, &a.IsActive, &a.IsEmailVerified,
		&plan, &subStart, &subEnd, &a.Subscription.IsActive,
		&a.ReferralCode, &referredBy, &a.ReferralCount,
		&lastLogin, &changedAt, &resetToken, &resetExpires,
		&a.Preferences.Notifications.Email, &a.Preferences.Notifications.Push, &a.Preferences.Notifications.Marketing,
		&a.Preferences.Timezone, &a.Preferences.Language,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ExperienceLevel = models.ExperienceLevel(experience)
	a.Role = models.Role(role)
	a.Subscription.Type = models.Plan(plan)
	a.Subscription.StartDate = fromNullMillis(subStart)
	a.Subscription.EndDate = fromNullMillis(subEnd)
	if referredBy.Valid {
		a.ReferredBy = &referredBy.String
	}
	a.LastLogin = fromNullMillis(lastLogin)
	a.PasswordChangedAt = fromNullMillis(changedAt)
	a.PasswordResetToken = resetToken.String
	a.PasswordResetExpires = fromNullMillis(resetExpires)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &a, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// duplicateField maps a unique violation to the offending column.
func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		name := strings.TrimPrefix(pgErr.ConstraintName, "accounts_")
		return strings.TrimSuffix(name, "_key"), true
	}

	// SQLite: "UNIQUE constraint failed: accounts.email (2067)"
	const marker = "UNIQUE constraint failed: "
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	fields := strings.Fields(msg[i+len(marker):])
	if len(fields) == 0 {
		return "", false
	}
	col := strings.TrimSuffix(fields[0], ",")
	if dot := strings.LastIndex(col, "."); dot >= 0 {
		col = col[dot+1:]
	}
	return col, true
}
