package auth

import (
	"context"

	"github.com/goliatone/go-credentials/middleware/jwtware"
)

// TokenValidator returns the manager as a jwtware.TokenValidator so the
// middleware applies the same checks as Read.
func (m *SessionManager) TokenValidator() jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(ctx context.Context, raw string) (jwtware.AuthClaims, error) {
		claims, err := m.Read(ctx, raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

var _ jwtware.AuthClaims = (*SessionClaims)(nil)
