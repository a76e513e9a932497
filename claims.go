package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the signed session payload. User is set by the JWT
// callback on first issue and carried across refreshes. SessionID names
// the session every refreshed token belongs to, jti names a single token.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string         `json:"sid,omitempty"`
	User      *SanitizedUser `json:"user,omitempty"`
	Extended  bool           `json:"ext,omitempty"`
}

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the id of the signed in user
func (c *SessionClaims) UserID() string {
	if c.User != nil && c.User.ID != "" {
		return c.User.ID
	}
	return c.Subject()
}

// TokenID returns the jti claim
func (c *SessionClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// SID returns the session id. Tokens minted without one are their own
// session.
func (c *SessionClaims) SID() string {
	if c.SessionID != "" {
		return c.SessionID
	}
	return c.TokenID()
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

type claimsDefaults struct {
	issuer   string
	audience []string
	ttl      time.Duration
}

// newSessionClaims builds the registered part of a fresh token for a new
// session. The user payload is left to the JWT callback.
func newSessionClaims(subject string, now time.Time, d claimsDefaults) *SessionClaims {
	var aud jwt.ClaimStrings
	if len(d.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(d.audience))
		copy(aud, d.audience)
	}

	return &SessionClaims{
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    d.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
		},
	}
}
