package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-credentials"
)

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, time.Time) error {
	return errors.New("redis: connection refused")
}

func (failingRevoker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func verifiedUser() *auth.SanitizedUser {
	return &auth.SanitizedUser{
		ID:        uuid.NewString(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "+447400123456",
	}
}

func newSessionManager(opts ...auth.SessionManagerOption) *auth.SessionManager {
	cfg := testConfig()
	return auth.NewSessionManager(cfg, newTokenService(cfg), opts...)
}

func TestSessionManagerIssueAndRead(t *testing.T) {
	ctx := context.Background()
	manager := newSessionManager(auth.WithSessionRevoker(auth.NewMemoryRevoker()))
	user := verifiedUser()

	raw, claims, err := manager.Issue(ctx, user, false)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	assert.Equal(t, user.ID, claims.Subject())
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, user, claims.User)
	assert.NotSame(t, user, claims.User)
	assert.NotEmpty(t, claims.TokenID())
	assert.False(t, claims.Extended)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expires(), 2*time.Second)

	read, err := manager.Read(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, claims.TokenID(), read.TokenID())
	assert.Equal(t, user.Email, read.User.Email)

	session, err := manager.Shape(ctx, read)
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, auth.SessionAuthenticated, session.Status)
	assert.Equal(t, user.ID, session.User.ID)
	require.NotNil(t, session.Expires)
	assert.True(t, session.Expires.Equal(read.Expires()))
}

func TestSessionManagerExtendedSession(t *testing.T) {
	manager := newSessionManager()

	assert.Equal(t, time.Hour, manager.TTL(false))
	assert.Equal(t, 48*time.Hour, manager.TTL(true))

	_, claims, err := manager.Issue(context.Background(), verifiedUser(), true)
	require.NoError(t, err)
	assert.True(t, claims.Extended)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), claims.Expires(), 2*time.Second)
}

func TestSessionManagerDefaultLifetimes(t *testing.T) {
	cfg := testConfig()
	cfg.TokenExpiration = 0
	cfg.ExtendedTokenDuration = 0

	manager := auth.NewSessionManager(cfg, newTokenService(cfg))
	assert.Equal(t, 24*time.Hour, manager.TTL(false))
	assert.Equal(t, 24*time.Hour, manager.TTL(true))
}

func TestSessionManagerRequiresVerifiedUser(t *testing.T) {
	manager := newSessionManager()

	_, _, err := manager.Issue(context.Background(), nil, false)
	assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))

	_, _, err = manager.Issue(context.Background(), &auth.SanitizedUser{Email: "ada@example.com"}, false)
	assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))

	forgetful := newSessionManager(auth.WithJWTCallback(func(context.Context, *auth.SessionClaims, *auth.SanitizedUser) error {
		return nil
	}))
	_, _, err = forgetful.Issue(context.Background(), verifiedUser(), false)
	assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))
}

func TestSessionManagerReadRejectsTokensWithoutUser(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	tokens := newTokenService(cfg)
	manager := auth.NewSessionManager(cfg, tokens)

	now := time.Now()
	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   uuid.NewString(),
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings(cfg.Audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	t.Run("no user payload", func(t *testing.T) {
		raw, err := tokens.Sign(&auth.SessionClaims{RegisteredClaims: registered})
		require.NoError(t, err)

		_, err = manager.Read(ctx, raw)
		assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))
	})

	t.Run("user does not match subject", func(t *testing.T) {
		raw, err := tokens.Sign(&auth.SessionClaims{RegisteredClaims: registered, User: verifiedUser()})
		require.NoError(t, err)

		_, err = manager.Read(ctx, raw)
		assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))
	})

	t.Run("empty and garbage tokens", func(t *testing.T) {
		_, err := manager.Read(ctx, "")
		assert.True(t, errors.Is(err, auth.ErrUnableToFindSession))

		_, err = manager.Read(ctx, "not.a.token")
		assert.True(t, errors.Is(err, auth.ErrTokenMalformed))
	})
}

func TestSessionManagerJWTCallback(t *testing.T) {
	ctx := context.Background()

	var (
		calls      atomic.Int32
		withUser   atomic.Int32
		sawNilUser atomic.Bool
	)

	callback := func(ctx context.Context, claims *auth.SessionClaims, user *auth.SanitizedUser) error {
		calls.Add(1)
		if user == nil {
			sawNilUser.Store(true)
		} else {
			withUser.Add(1)
		}
		return auth.DefaultJWTCallback(ctx, claims, user)
	}

	now := time.Now().Add(-20 * time.Minute)
	manager := newSessionManager(
		auth.WithJWTCallback(callback),
		auth.WithSessionClock(func() time.Time { return now }),
	)

	user := verifiedUser()
	_, claims, err := manager.Issue(ctx, user, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, withUser.Load())

	now = time.Now()
	require.True(t, manager.NeedsRefresh(claims))

	raw, next, err := manager.Refresh(ctx, claims)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, withUser.Load())
	assert.True(t, sawNilUser.Load())

	assert.NotEqual(t, claims.TokenID(), next.TokenID())
	assert.Equal(t, claims.SID(), next.SID())
	assert.Equal(t, claims.Subject(), next.Subject())
	assert.Equal(t, claims.User, next.User)
	assert.True(t, next.Extended)
	assert.True(t, next.Expires().After(claims.Expires()))
	assert.False(t, manager.NeedsRefresh(next))

	read, err := manager.Read(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, user.Email, read.User.Email)
}

func TestDefaultJWTCallbackIsIdempotent(t *testing.T) {
	ctx := context.Background()
	user := verifiedUser()

	once := &auth.SessionClaims{}
	require.NoError(t, auth.DefaultJWTCallback(ctx, once, user))

	twice := &auth.SessionClaims{}
	require.NoError(t, auth.DefaultJWTCallback(ctx, twice, user))
	require.NoError(t, auth.DefaultJWTCallback(ctx, twice, user))
	assert.Equal(t, once, twice)

	// refresh leaves the carried user alone
	require.NoError(t, auth.DefaultJWTCallback(ctx, twice, nil))
	assert.Equal(t, once, twice)
}

func TestSessionManagerImmutableClaims(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*auth.SessionClaims)
	}{
		{"subject", func(c *auth.SessionClaims) { c.RegisteredClaims.Subject = "someone-else" }},
		{"token id", func(c *auth.SessionClaims) { c.RegisteredClaims.ID = "fixed" }},
		{"session id", func(c *auth.SessionClaims) { c.SessionID = "shared" }},
		{"issuer", func(c *auth.SessionClaims) { c.RegisteredClaims.Issuer = "evil" }},
		{"audience", func(c *auth.SessionClaims) { c.RegisteredClaims.Audience = jwt.ClaimStrings{"other"} }},
		{"expiry", func(c *auth.SessionClaims) {
			c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(365 * 24 * time.Hour))
		}},
		{"user id", func(c *auth.SessionClaims) { c.User.ID = uuid.NewString() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newSessionManager(auth.WithJWTCallback(auth.ChainJWTCallbacks(
				auth.DefaultJWTCallback,
				func(_ context.Context, claims *auth.SessionClaims, _ *auth.SanitizedUser) error {
					tt.mutate(claims)
					return nil
				},
			)))

			_, _, err := manager.Issue(ctx, verifiedUser(), false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrImmutableClaimMutation))
		})
	}
}

func TestSessionManagerCallbackMayEnrichUser(t *testing.T) {
	ctx := context.Background()
	manager := newSessionManager(auth.WithJWTCallback(auth.ChainJWTCallbacks(
		auth.DefaultJWTCallback,
		nil,
		func(_ context.Context, claims *auth.SessionClaims, user *auth.SanitizedUser) error {
			if user != nil {
				claims.User.FirstName = "Countess"
			}
			return nil
		},
	)))

	raw, _, err := manager.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	claims, err := manager.Read(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "Countess", claims.User.FirstName)
}

func TestSessionManagerCallbackErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	manager := newSessionManager(auth.WithJWTCallback(func(context.Context, *auth.SessionClaims, *auth.SanitizedUser) error {
		return boom
	}))
	_, _, err := manager.Issue(ctx, verifiedUser(), false)
	assert.ErrorIs(t, err, boom)

	shaper := newSessionManager(auth.WithSessionCallback(func(context.Context, *auth.Session, *auth.SessionClaims) error {
		return boom
	}))
	_, claims, err := shaper.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	_, err = shaper.Shape(ctx, claims)
	assert.ErrorIs(t, err, boom)
}

func TestSessionManagerShape(t *testing.T) {
	ctx := context.Background()

	session, err := newSessionManager().Shape(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionUnauthenticated, session.Status)
	assert.Nil(t, session.User)
	assert.False(t, session.IsAuthenticated())

	hiding := newSessionManager(auth.WithSessionCallback(func(context.Context, *auth.Session, *auth.SessionClaims) error {
		return nil
	}))
	_, claims, err := hiding.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	session, err = hiding.Shape(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionUnauthenticated, session.Status)

	trimmed := newSessionManager(auth.WithSessionCallback(func(ctx context.Context, s *auth.Session, c *auth.SessionClaims) error {
		if err := auth.DefaultSessionCallback(ctx, s, c); err != nil {
			return err
		}
		s.User.Phone = ""
		return nil
	}))
	_, claims, err = trimmed.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	session, err = trimmed.Shape(ctx, claims)
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())
	assert.Empty(t, session.User.Phone)
	assert.Equal(t, "+447400123456", claims.User.Phone)
}

func TestSessionManagerRevoke(t *testing.T) {
	ctx := context.Background()
	revoker := auth.NewMemoryRevoker()
	sink := &recordingSink{}
	manager := newSessionManager(
		auth.WithSessionRevoker(revoker),
		auth.WithSessionActivitySink(sink),
	)

	raw, claims, err := manager.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, claims))
	assert.Equal(t, 1, revoker.Len())
	assert.Equal(t, auth.ActivityEventSignOut, sink.Last().EventType)
	assert.Equal(t, claims.UserID(), sink.Last().UserID)

	_, err = manager.Read(ctx, raw)
	assert.True(t, errors.Is(err, auth.ErrTokenRevoked))

	// a fresh sign in is unaffected
	other, _, err := manager.Issue(ctx, claims.User, false)
	require.NoError(t, err)
	_, err = manager.Read(ctx, other)
	assert.NoError(t, err)

	assert.NoError(t, manager.Revoke(ctx, nil))
}

func TestSessionManagerRevokeEndsRefreshedSession(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Add(-20 * time.Minute)
	manager := newSessionManager(
		auth.WithSessionRevoker(auth.NewMemoryRevoker()),
		auth.WithSessionClock(func() time.Time { return now }),
	)

	rawA, a, err := manager.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)
	require.NotEmpty(t, a.SessionID)

	now = time.Now()
	rawB, b, err := manager.Refresh(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a.SID(), b.SID())
	assert.NotEqual(t, a.TokenID(), b.TokenID())

	// both tokens stay usable until sign out
	_, err = manager.Read(ctx, rawA)
	require.NoError(t, err)
	_, err = manager.Read(ctx, rawB)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, b))

	_, err = manager.Read(ctx, rawA)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	_, err = manager.Read(ctx, rawB)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	// signing in again starts a new session
	rawC, c, err := manager.Issue(ctx, a.User, false)
	require.NoError(t, err)
	assert.NotEqual(t, a.SID(), c.SID())
	_, err = manager.Read(ctx, rawC)
	assert.NoError(t, err)
}

func TestSessionClaimsSIDFallsBackToTokenID(t *testing.T) {
	claims := &auth.SessionClaims{}
	claims.RegisteredClaims.ID = "jti-1"
	assert.Equal(t, "jti-1", claims.SID())

	claims.SessionID = "sid-1"
	assert.Equal(t, "sid-1", claims.SID())
}

func TestSessionManagerRevokerUnavailable(t *testing.T) {
	ctx := context.Background()
	manager := newSessionManager(auth.WithSessionRevoker(failingRevoker{}))

	raw, claims, err := manager.Issue(ctx, verifiedUser(), false)
	require.NoError(t, err)

	_, err = manager.Read(ctx, raw)
	assert.True(t, errors.Is(err, auth.ErrStoreUnavailable))

	err = manager.Revoke(ctx, claims)
	assert.True(t, errors.Is(err, auth.ErrStoreUnavailable))
}

func TestSessionManagerExpiredToken(t *testing.T) {
	manager := newSessionManager(auth.WithSessionClock(func() time.Time {
		return time.Now().Add(-3 * time.Hour)
	}))

	raw, _, err := manager.Issue(context.Background(), verifiedUser(), false)
	require.NoError(t, err)

	_, err = manager.Read(context.Background(), raw)
	assert.True(t, errors.Is(err, auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestSessionManagerNeedsRefresh(t *testing.T) {
	now := time.Now()
	manager := newSessionManager(auth.WithSessionClock(func() time.Time { return now }))

	_, claims, err := manager.Issue(context.Background(), verifiedUser(), false)
	require.NoError(t, err)

	assert.False(t, manager.NeedsRefresh(claims))
	assert.False(t, manager.NeedsRefresh(nil))

	now = now.Add(11 * time.Minute)
	assert.True(t, manager.NeedsRefresh(claims))

	cfg := testConfig()
	cfg.UpdateAge = 0
	never := auth.NewSessionManager(cfg, newTokenService(cfg))
	assert.False(t, never.NeedsRefresh(claims))

	_, _, err = manager.Refresh(context.Background(), &auth.SessionClaims{})
	assert.True(t, errors.Is(err, auth.ErrSessionWithoutUser))
}
