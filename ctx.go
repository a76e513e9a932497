package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithSession sets the shaped Session in the given context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext returns the session stored in ctx. Without one the
// caller is anonymous.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	if !ok || raw == nil {
		return AnonymousSession(), false
	}
	return raw, true
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the SessionClaims from the standard context
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the SessionClaims stored by the JWT middleware
func GetRouterClaims(c router.Context, key string) (*SessionClaims, bool) {
	if key == "" {
		key = "user"
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*SessionClaims)
	return claims, ok
}

// CurrentUser returns the signed in user of the request, if any
func CurrentUser(ctx context.Context) (*SanitizedUser, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok || !session.IsAuthenticated() {
		return nil, false
	}
	return session.User, true
}
