package services

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/models"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	hasLower        = regexp.MustCompile(`[a-z]`)
	hasUpper        = regexp.MustCompile(`[A-Z]`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// passwordRules enforce a length between 6 characters and 72 bytes and one
// lowercase letter, one uppercase letter and one digit.
var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(6, maxPasswordBytes).Error("password must be between 6 and 72 characters long"),
	validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > maxPasswordBytes {
			return errors.New("password must not exceed 72 bytes")
		}
		if !hasLower.MatchString(s) || !hasUpper.MatchString(s) || !hasDigit.MatchString(s) {
			return errors.New("password must contain at least one lowercase letter, one uppercase letter, and one number")
		}
		return nil
	}),
}

func experienceLevelIn() validation.Rule {
	levels := make([]interface{}, len(models.ExperienceLevels))
	for i, l := range models.ExperienceLevels {
		levels[i] = l
	}
	return validation.In(levels...).Error("invalid experience level")
}

func languageIn() validation.Rule {
	langs := make([]interface{}, len(models.Languages))
	for i, l := range models.Languages {
		langs[i] = l
	}
	return validation.In(langs...).Error("invalid language preference")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks a registration request. Call Normalize first.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username,
			validation.Required,
			validation.Length(3, 30).Error("username must be between 3 and 30 characters"),
			validation.Match(usernamePattern).Error("username can only contain letters, numbers, and underscores"),
		),
		validation.Field(&in.Email, validation.Required, is.Email.Error("please provide a valid email address")),
		validation.Field(&in.Password, passwordRules...),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.ExperienceLevel, experienceLevelIn()),
	)
}

// Validate checks a login request.
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email.Error("please provide a valid email address")),
		validation.Field(&in.Password, validation.Required),
	)
}

// Validate checks a password change request.
func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, passwordRules...),
	)
}

func validateEmail(email string) error {
	in := struct {
		Email string `json:"email"`
	}{email}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email.Error("please provide a valid email address")),
	)
}

func validateNewPassword(password string) error {
	in := struct {
		Password string `json:"password"`
	}{password}
	return validation.ValidateStruct(&in, validation.Field(&in.Password, passwordRules...))
}

func validateProfileUpdate(u models.ProfileUpdate) error {
	in := struct {
		FirstName       *string                 `json:"firstName"`
		LastName        *string                 `json:"lastName"`
		ExperienceLevel *models.ExperienceLevel `json:"experienceLevel"`
		Language        *string                 `json:"preferences.language"`
	}{FirstName: trimPtr(u.FirstName), LastName: trimPtr(u.LastName), ExperienceLevel: u.ExperienceLevel}
	if u.Preferences != nil {
		in.Language = u.Preferences.Language
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&in.ExperienceLevel, validation.NilOrNotEmpty, experienceLevelIn()),
		validation.Field(&in.Language, validation.NilOrNotEmpty, languageIn()),
	)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// validationError converts ozzo validation errors into ErrValidation with
// per-field details. Other errors pass through.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		fields = append(fields, apperr.FieldError{Field: field, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return apperr.ErrValidation.WithFields(fields)
}
