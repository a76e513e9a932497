package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// ErrImmutableClaimMutation a JWT callback touched a registered claim
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode(errors.TextCodeImmutableClaim)

type immutableClaimsSnapshot struct {
	id        string
	sessionID string
	subject   string
	issuer    string
	audience  []string
	issuedAt  time.Time
	expiresAt time.Time
	userID    string
}

func captureImmutableClaims(claims *SessionClaims) immutableClaimsSnapshot {
	snap := immutableClaimsSnapshot{
		id:        claims.RegisteredClaims.ID,
		sessionID: claims.SessionID,
		subject:   claims.RegisteredClaims.Subject,
		issuer:    claims.RegisteredClaims.Issuer,
		audience:  append([]string(nil), claims.RegisteredClaims.Audience...),
		issuedAt:  claims.IssuedAt(),
		expiresAt: claims.Expires(),
	}
	if claims.User != nil {
		snap.userID = claims.User.ID
	}
	return snap
}

// validate fails when anything but the user payload changed. The user id
// may only be set, never swapped for another one.
func (snap immutableClaimsSnapshot) validate(claims *SessionClaims) error {
	switch {
	case claims.RegisteredClaims.ID != snap.id:
		return immutableClaimViolation("jti")
	case claims.SessionID != snap.sessionID:
		return immutableClaimViolation("sid")
	case claims.RegisteredClaims.Subject != snap.subject:
		return immutableClaimViolation("sub")
	case claims.RegisteredClaims.Issuer != snap.issuer:
		return immutableClaimViolation("iss")
	case !audienceEqual(claims.RegisteredClaims.Audience, snap.audience):
		return immutableClaimViolation("aud")
	case !claims.IssuedAt().Equal(snap.issuedAt):
		return immutableClaimViolation("iat")
	case !claims.Expires().Equal(snap.expiresAt):
		return immutableClaimViolation("exp")
	}

	if snap.userID != "" && (claims.User == nil || claims.User.ID != snap.userID) {
		return immutableClaimViolation("user.id")
	}

	return nil
}

func audienceEqual(a jwt.ClaimStrings, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
