package auth

import (
	"context"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator verifies a pair of credentials and returns the public
// projection of the matching user.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (*SanitizedUser, error)
}

// CredentialStore is the persistence contract needed by the authenticator
// and the registration action.
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	InsertUser(ctx context.Context, user *User) (*User, error)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetUpdateAge() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetCookieSecure() bool
}

// TokenService signs and validates session tokens
type TokenService interface {
	Sign(claims *SessionClaims) (string, error)
	Validate(raw string) (*SessionClaims, error)
}
