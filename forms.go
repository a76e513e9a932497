package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 50
	NameMinLength     = 2
	NameMaxLength     = 45

	// bcrypt ignores anything past 72 bytes
	passwordMaxBytes = 72
)

const (
	invalidEmailMessage    = "Please enter a valid email address"
	missingPasswordMessage = "Please enter your password"
	specialCharMessage     = "No special character allowed!"
	invalidPhoneMessage    = "Please enter a valid phone number!"
	passwordTooShortMsg    = "Password must be at least 6 characters"
	passwordTooLongMessage = "Password must be less than 50 characters"
	passwordMismatchMsg    = "Passwords must match"
	acceptTermsMessage     = "Please accept all terms"
)

// DefaultPhoneRegion is used to parse phone numbers given without a
// country calling code.
var DefaultPhoneRegion = "US"

var lettersOnly = regexp.MustCompile(`^[a-zA-Z]+$`)

// SignInInput is the sign in form payload
type SignInInput struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	RememberMe  bool   `form:"remember_me" json:"remember_me"`
	CallbackURL string `form:"callback_url" json:"callback_url,omitempty"`
}

func (r SignInInput) GetIdentifier() string {
	return r.Email
}

func (r SignInInput) GetPassword() string {
	return r.Password
}

func (r SignInInput) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r SignInInput) Validate() error {
	return fromOzzo(validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(invalidEmailMessage),
			is.EmailFormat.Error(invalidEmailMessage),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(missingPasswordMessage),
		),
	))
}

// RegistrationInput is the sign up form payload. ConfirmPassword and
// Accepted only exist for validation and are never stored.
type RegistrationInput struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone" json:"phone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	Accepted        bool   `form:"accepted" json:"accepted"`
}

// Validate checks every field and reports the first violation per field
func (r RegistrationInput) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)

	return fromOzzo(validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, nameRules("First name")...),
		validation.Field(&r.LastName, nameRules("Last name")...),
		validation.Field(
			&r.Email,
			validation.Required.Error(invalidEmailMessage),
			is.EmailFormat.Error(invalidEmailMessage),
		),
		validation.Field(
			&r.Phone,
			validation.Required.Error(invalidPhoneMessage),
			validation.By(validatePhone),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(passwordTooShortMsg),
			validation.RuneLength(PasswordMinLength, 0).Error(passwordTooShortMsg),
			validation.RuneLength(0, PasswordMaxLength).Error(passwordTooLongMessage),
			validation.Length(0, passwordMaxBytes).Error(passwordTooLongMessage),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.By(ValidateStringEquals(r.Password, passwordMismatchMsg)),
		),
		validation.Field(
			&r.Accepted,
			validation.Required.Error(acceptTermsMessage),
		),
	))
}

// Normalize returns the canonical form of a valid input: trimmed names,
// lower case email and E.164 phone number.
func (r RegistrationInput) Normalize() RegistrationInput {
	out := r
	out.FirstName = strings.TrimSpace(r.FirstName)
	out.LastName = strings.TrimSpace(r.LastName)
	out.Email = NormalizeEmail(r.Email)
	if e164, err := NormalizePhone(r.Phone); err == nil {
		out.Phone = e164
	}
	return out
}

func nameRules(label string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(label + " must be at least 2 characters"),
		validation.RuneLength(NameMinLength, 0).Error(label + " must be at least 2 characters"),
		validation.RuneLength(0, NameMaxLength).Error(label + " must be less than 45 characters"),
		validation.Match(lettersOnly).Error(specialCharMessage),
	}
}

// NormalizePhone parses a mobile number and formats it as E.164
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), DefaultPhoneRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New(invalidPhoneMessage, errors.CategoryValidation)
	}

	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
	default:
		return "", errors.New(invalidPhoneMessage, errors.CategoryValidation)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validatePhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := NormalizePhone(s); err != nil {
		return validation.NewError("validation_phone_invalid", invalidPhoneMessage)
	}
	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string, message ...string) validation.RuleFunc {
	msg := "values must match"
	if len(message) > 0 {
		msg = message[0]
	}
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return validation.NewError("validation_not_equal", msg)
		}
		return nil
	}
}

// fromOzzo converts ozzo field errors into a VALIDATION_FAILED error
func fromOzzo(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, errors.CategoryInternal, "validation rules failed to run")
	}

	rich := errors.FromOzzoValidation(fieldErrs, ErrValidationFailed.Message).
		WithCode(ErrValidationFailed.Code).
		WithTextCode(ErrValidationFailed.TextCode)
	rich.Source = ErrValidationFailed
	return rich
}

// ValidationFields returns the field -> message map carried by err, or nil
func ValidationFields(err error) map[string]string {
	var rich *errors.Error
	if !errors.As(err, &rich) || rich.Category != errors.CategoryValidation {
		return nil
	}
	fields := make(map[string]string, len(rich.ValidationErrors))
	for _, fe := range rich.ValidationErrors {
		fields[fe.Field] = fe.Message
	}
	return fields
}
