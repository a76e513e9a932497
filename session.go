package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// SessionStatus is either authenticated or unauthenticated, there is no
// third state.
type SessionStatus string

const (
	SessionUnauthenticated SessionStatus = "unauthenticated"
	SessionAuthenticated   SessionStatus = "authenticated"
)

// Session is what clients see of a signed in user
type Session struct {
	Status  SessionStatus  `json:"status"`
	User    *SanitizedUser `json:"user,omitempty"`
	Expires *time.Time     `json:"expires,omitempty"`
}

// AnonymousSession is the session of a visitor that has not signed in
func AnonymousSession() *Session {
	return &Session{Status: SessionUnauthenticated}
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Status == SessionAuthenticated && s.User != nil
}

// SessionManager issues, reads, refreshes and revokes session tokens. A
// token is only ever minted for a user that passed password verification.
type SessionManager struct {
	tokens          TokenService
	revoker         SessionRevoker
	jwtCallback     JWTCallback
	sessionCallback SessionCallback
	defaults        claimsDefaults
	extendedTTL     time.Duration
	updateAge       time.Duration
	logger          Logger
	activity        ActivitySink
	now             func() time.Time
}

type SessionManagerOption func(*SessionManager)

func WithJWTCallback(cb JWTCallback) SessionManagerOption {
	return func(m *SessionManager) {
		m.jwtCallback = normalizeJWTCallback(cb)
	}
}

func WithSessionCallback(cb SessionCallback) SessionManagerOption {
	return func(m *SessionManager) {
		m.sessionCallback = normalizeSessionCallback(cb)
	}
}

func WithSessionRevoker(r SessionRevoker) SessionManagerOption {
	return func(m *SessionManager) {
		if r == nil {
			r = noopRevoker{}
		}
		m.revoker = r
	}
}

func WithSessionLogger(l Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = normalizeLogger(l)
	}
}

func WithSessionActivitySink(s ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activity = normalizeActivitySink(s)
	}
}

func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager builds a manager from cfg. Token lifetimes are read in
// hours like the cookie durations.
func NewSessionManager(cfg Config, tokens TokenService, opts ...SessionManagerOption) *SessionManager {
	ttl := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		ttl = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extended := ttl
	if cfg.GetExtendedTokenDuration() > 0 {
		extended = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	m := &SessionManager{
		tokens:          tokens,
		revoker:         noopRevoker{},
		jwtCallback:     DefaultJWTCallback,
		sessionCallback: DefaultSessionCallback,
		defaults: claimsDefaults{
			issuer:   cfg.GetIssuer(),
			audience: cfg.GetAudience(),
			ttl:      ttl,
		},
		extendedTTL: extended,
		updateAge:   cfg.GetUpdateAge(),
		logger:      defLogger,
		activity:    noopActivitySink{},
		now:         time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// TTL returns the token lifetime
func (m *SessionManager) TTL(extended bool) time.Duration {
	if extended {
		return m.extendedTTL
	}
	return m.defaults.ttl
}

// Issue mints a token for a verified user
func (m *SessionManager) Issue(ctx context.Context, user *SanitizedUser, extended bool) (string, *SessionClaims, error) {
	if user == nil || user.ID == "" {
		return "", nil, sentinelError(ErrSessionWithoutUser, nil)
	}

	d := m.defaults
	d.ttl = m.TTL(extended)

	claims := newSessionClaims(user.ID, m.now(), d)
	claims.Extended = extended

	return m.sign(ctx, claims, user)
}

// Read validates raw and returns its claims. Tokens of a revoked session
// and tokens without a user are rejected.
func (m *SessionManager) Read(ctx context.Context, raw string) (*SessionClaims, error) {
	if raw == "" {
		return nil, sentinelError(ErrUnableToFindSession, nil)
	}

	claims, err := m.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	if claims.User == nil || claims.User.ID != claims.Subject() {
		return nil, sentinelError(ErrSessionWithoutUser, nil)
	}

	revoked, err := m.revoker.IsRevoked(ctx, claims.SID())
	if err != nil {
		return nil, sentinelError(ErrStoreUnavailable, err, map[string]any{
			"operation": "session_revocation_lookup",
		})
	}
	if revoked {
		return nil, sentinelError(ErrTokenRevoked, nil)
	}

	return claims, nil
}

// NeedsRefresh reports whether claims are older than the update age
func (m *SessionManager) NeedsRefresh(claims *SessionClaims) bool {
	if m.updateAge <= 0 || claims == nil {
		return false
	}
	return m.now().Sub(claims.IssuedAt()) >= m.updateAge
}

// Refresh re-issues claims with a new id and lifetime inside the same
// session. The JWT callback runs with a nil user so the carried user
// payload is kept as is.
func (m *SessionManager) Refresh(ctx context.Context, claims *SessionClaims) (string, *SessionClaims, error) {
	if claims == nil || claims.User == nil {
		return "", nil, sentinelError(ErrSessionWithoutUser, nil)
	}

	d := m.defaults
	d.ttl = m.TTL(claims.Extended)

	next := newSessionClaims(claims.Subject(), m.now(), d)
	next.SessionID = claims.SID()
	next.Extended = claims.Extended
	u := *claims.User
	next.User = &u

	return m.sign(ctx, next, nil)
}

// Shape turns claims into the client facing session. Nil claims give the
// anonymous session.
func (m *SessionManager) Shape(ctx context.Context, claims *SessionClaims) (*Session, error) {
	if claims == nil {
		return AnonymousSession(), nil
	}

	exp := claims.Expires()
	session := &Session{
		Status:  SessionAuthenticated,
		Expires: &exp,
	}

	if err := m.sessionCallback(ctx, session, claims); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "session callback failed")
	}

	if session.User == nil {
		return AnonymousSession(), nil
	}

	return session, nil
}

// Revoke signs the whole session out, tokens refreshed before or after
// claims included. The entry outlives every token the session could have
// minted.
func (m *SessionManager) Revoke(ctx context.Context, claims *SessionClaims) error {
	if claims == nil {
		return nil
	}

	until := m.now().Add(max(m.TTL(false), m.TTL(true)))
	if exp := claims.Expires(); exp.After(until) {
		until = exp
	}

	if err := m.revoker.Revoke(ctx, claims.SID(), until); err != nil {
		return sentinelError(ErrStoreUnavailable, err, map[string]any{
			"operation": "session_revoke",
		})
	}

	recordActivity(ctx, m.activity, m.logger, ActivityEvent{
		EventType: ActivityEventSignOut,
		UserID:    claims.UserID(),
		Metadata:  map[string]any{"session_id": claims.SID()},
	})

	return nil
}

func (m *SessionManager) sign(ctx context.Context, claims *SessionClaims, user *SanitizedUser) (string, *SessionClaims, error) {
	snap := captureImmutableClaims(claims)

	if err := m.jwtCallback(ctx, claims, user); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "jwt callback failed")
	}

	if err := snap.validate(claims); err != nil {
		return "", nil, err
	}

	if claims.User == nil {
		return "", nil, sentinelError(ErrSessionWithoutUser, nil)
	}

	if claims.User.ID != claims.Subject() {
		return "", nil, immutableClaimViolation("user.id")
	}

	raw, err := m.tokens.Sign(claims)
	if err != nil {
		return "", nil, err
	}

	return raw, claims, nil
}
