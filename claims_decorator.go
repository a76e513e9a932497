package auth

import "context"

// JWTCallback enriches the token claims. It runs on first issue with the
// verified user and on every refresh with a nil user. Implementations must
// be idempotent and may only touch the user payload.
type JWTCallback func(ctx context.Context, claims *SessionClaims, user *SanitizedUser) error

// SessionCallback shapes the session returned to clients from the claims.
type SessionCallback func(ctx context.Context, session *Session, claims *SessionClaims) error

// DefaultJWTCallback attaches the user when one is given and leaves the
// claims alone otherwise.
func DefaultJWTCallback(_ context.Context, claims *SessionClaims, user *SanitizedUser) error {
	if user != nil {
		u := *user
		claims.User = &u
	}
	return nil
}

// DefaultSessionCallback copies the user carried by the claims onto the session
func DefaultSessionCallback(_ context.Context, session *Session, claims *SessionClaims) error {
	if claims.User != nil {
		u := *claims.User
		session.User = &u
	}
	return nil
}

// ChainJWTCallbacks runs callbacks in order, stopping at the first error
func ChainJWTCallbacks(callbacks ...JWTCallback) JWTCallback {
	return func(ctx context.Context, claims *SessionClaims, user *SanitizedUser) error {
		for _, cb := range callbacks {
			if cb == nil {
				continue
			}
			if err := cb(ctx, claims, user); err != nil {
				return err
			}
		}
		return nil
	}
}

func normalizeJWTCallback(cb JWTCallback) JWTCallback {
	if cb == nil {
		return DefaultJWTCallback
	}
	return cb
}

func normalizeSessionCallback(cb SessionCallback) SessionCallback {
	if cb == nil {
		return DefaultSessionCallback
	}
	return cb
}
