package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound      = "USER_NOT_FOUND"
	TextCodeMissingPassword   = "MISSING_PASSWORD"
	TextCodeInvalidPassword   = "INVALID_PASSWORD"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	TextCodeValidationFailed  = "VALIDATION_FAILED"
	TextCodeSubmitInFlight    = "SUBMIT_IN_FLIGHT"
	TextCodeSessionRevoked    = "SESSION_REVOKED"
	TextCodeSessionNotAllowed = "SESSION_NOT_ALLOWED"
)

// InvalidCredentialsMessage is the only message shown to end users for any
// failed credential check.
const InvalidCredentialsMessage = "User name or password is not correct"

var (
	// ErrUserNotFound no account matches the identifier
	ErrUserNotFound = errors.New("User name or password is not correct", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeUserNotFound)

	// ErrMissingPassword the account exists but no password was supplied
	ErrMissingPassword = errors.New("Please provide your password", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeMissingPassword)

	// ErrInvalidPassword the password does not match the stored hash
	ErrInvalidPassword = errors.New("Password is not correct", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeInvalidPassword)

	ErrDuplicateEmail = errors.New("An account with this email already exists", errors.CategoryConflict).
				WithCode(errors.CodeConflict).
				WithTextCode(TextCodeDuplicateEmail)

	ErrStoreUnavailable = errors.New("Credential store unavailable", errors.CategoryExternal).
				WithCode(http.StatusServiceUnavailable).
				WithTextCode(TextCodeStoreUnavailable)

	ErrValidationFailed = errors.New("Validation failed", errors.CategoryValidation).
				WithCode(http.StatusUnprocessableEntity).
				WithTextCode(TextCodeValidationFailed)
)

var (
	// ErrUnableToFindSession is the error when our request has no cookie
	ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeSessionNotFound)

	ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized).
					WithTextCode(errors.TextCodeSessionDecodeError)

	ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(errors.TextCodeTokenExpired)

	ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeTokenMalformed)

	ErrTokenRevoked = errors.New("session was signed out", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeSessionRevoked)

	// ErrSessionWithoutUser claims that never went through password verification
	ErrSessionWithoutUser = errors.New("session has no verified user", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeSessionNotAllowed)
)

// sentinelError returns a copy of sentinel that still matches it with
// errors.Is. When cause is given it is kept in the chain as well.
func sentinelError(sentinel *errors.Error, cause error, metadata ...map[string]any) *errors.Error {
	out := sentinel.Clone()
	out.Location = nil
	if cause != nil {
		out.Source = errors.Join(sentinel, cause)
	} else {
		out.Source = sentinel
	}
	if len(metadata) > 0 {
		out = out.WithMetadata(metadata...)
	}
	return out
}

// validationError builds a VALIDATION_FAILED error from a field -> message map.
func validationError(fields map[string]string) *errors.Error {
	out := errors.NewValidationFromMap(ErrValidationFailed.Message, fields).
		WithCode(ErrValidationFailed.Code).
		WithTextCode(ErrValidationFailed.TextCode)
	out.Source = ErrValidationFailed
	return out
}

// IsCredentialError reports whether err is one of the three sign-in failures
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrMissingPassword) ||
		errors.Is(err, ErrInvalidPassword)
}

// PublicMessage returns the message safe to show to an end user. Credential
// failures collapse into one message so callers can't tell which accounts exist.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}

	if IsCredentialError(err) {
		return InvalidCredentialsMessage
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return ErrDuplicateEmail.Message
		case errors.Is(err, ErrStoreUnavailable):
			return "Service temporarily unavailable, please try again"
		case rich.Category == errors.CategoryValidation:
			return ErrValidationFailed.Message
		}
	}

	return "Something went wrong"
}

// StatusCode maps err to an HTTP status
func StatusCode(err error) int {
	var rich *errors.Error
	if errors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
