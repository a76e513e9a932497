package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-credentials/middleware/jwtware"
)

// RouteAuthenticator moves sessions between HTTP requests and the session
// manager. The session travels as an HTTP only cookie.
type RouteAuthenticator struct {
	auth             Authenticator
	sessions         *SessionManager
	cfg              Config
	Logger           Logger
	AuthErrorHandler router.ErrorHandler
	ErrorHandler     router.ErrorHandler
}

func NewHTTPAuthenticator(auther Authenticator, sessions *SessionManager, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("http authenticator requires an Authenticator", errors.CategoryBadInput)
	}
	if sessions == nil {
		return nil, errors.New("http authenticator requires a SessionManager", errors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		cfg:      cfg,
		auth:     auther,
		sessions: sessions,
		Logger:   defLogger,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(l)
	return a
}

// GetCookieDuration returns the lifetime of a regular session cookie
func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.sessions.TTL(false)
}

// GetExtendedCookieDuration returns the lifetime of a remember me cookie
func (a *RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.sessions.TTL(true)
}

// SignIn verifies the credentials and stores a fresh session cookie
func (a *RouteAuthenticator) SignIn(c router.Context, payload LoginPayload) (*SanitizedUser, error) {
	user, err := a.auth.Authenticate(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return nil, err
	}

	token, claims, err := a.sessions.Issue(c.Context(), user, payload.GetExtendedSession())
	if err != nil {
		a.Logger.Error("session issue failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	a.setCookieToken(c, token, claims.Expires())
	return user, nil
}

// SignOut revokes the current session, if any, and clears the cookie
func (a *RouteAuthenticator) SignOut(c router.Context) error {
	defer a.cookieDel(c, a.cfg.GetContextKey())

	raw, err := a.rawToken(c)
	if err != nil {
		return nil
	}

	claims, err := a.sessions.Read(c.Context(), raw)
	if err != nil {
		// nothing to revoke
		return nil
	}

	return a.sessions.Revoke(c.Context(), claims)
}

// CurrentSession returns the shaped session of the request. Missing or
// invalid tokens give the anonymous session.
func (a *RouteAuthenticator) CurrentSession(c router.Context) (*Session, error) {
	if claims, ok := GetRouterClaims(c, a.cfg.GetContextKey()); ok {
		return a.sessions.Shape(c.Context(), claims)
	}

	raw, err := a.rawToken(c)
	if err != nil {
		return AnonymousSession(), nil
	}

	claims, err := a.sessions.Read(c.Context(), raw)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		a.Logger.Debug("ignoring unusable session token", "error", err)
		return AnonymousSession(), nil
	}

	return a.sessions.Shape(c.Context(), claims)
}

// ProtectedRoute validates the session token. With optional set, requests
// without a usable token continue as anonymous.
func (a *RouteAuthenticator) ProtectedRoute(optional bool) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   a.MakeClientRouteAuthErrorHandler(optional),
		TokenValidator: a.sessions.TokenValidator(),
		AuthScheme:     a.cfg.GetAuthScheme(),
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    a.cfg.GetTokenLookup(),
		Optional:       optional,
		ValidationListeners: []jwtware.ValidationListener{
			a.refreshListener,
		},
		ContextEnricher: a.enrichContext,
	})
}

// refreshListener re-issues tokens older than the configured update age
func (a *RouteAuthenticator) refreshListener(c router.Context, claims jwtware.AuthClaims) error {
	sc, ok := claims.(*SessionClaims)
	if !ok || !a.sessions.NeedsRefresh(sc) {
		return nil
	}

	token, next, err := a.sessions.Refresh(c.Context(), sc)
	if err != nil {
		a.Logger.Warn("session refresh failed", "user_id", sc.UserID(), "error", err)
		return nil
	}

	a.setCookieToken(c, token, next.Expires())
	return nil
}

func (a *RouteAuthenticator) enrichContext(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	sc, ok := claims.(*SessionClaims)
	if !ok {
		return ctx
	}

	ctx = WithClaimsContext(ctx, sc)
	session, err := a.sessions.Shape(ctx, sc)
	if err != nil {
		a.Logger.Error("session callback failed", "error", err)
		return ctx
	}
	return WithSession(ctx, session)
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) router.ErrorHandler {
	return func(c router.Context, err error) error {
		var richErr *errors.Error

		switch {
		case errors.As(err, &richErr):
		case IsTokenExpiredError(err):
			richErr = ErrTokenExpired
		case IsMalformedError(err):
			richErr = ErrTokenMalformed
		default:
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional && richErr.Category == errors.CategoryAuth {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			a.cookieDel(c, a.cfg.GetContextKey())
			return c.Next()
		}

		return a.ErrorHandler(c, richErr)
	}
}

// GetRedirect returns and clears the remembered protected route
func (a *RouteAuthenticator) GetRedirect(c router.Context, def ...string) string {
	fallback := "/"
	if len(def) > 0 && def[0] != "" {
		fallback = def[0]
	}

	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		return fallback
	}
	a.cookieDel(c, rejectedRoute)
	return SafeRedirect(r, fallback)
}

func (a *RouteAuthenticator) GetRedirectOrDefault(c router.Context) string {
	return a.GetRedirect(c, a.cfg.GetRejectedRouteDefault())
}

// SetRedirect remembers the current URL so sign in can return to it
func (a *RouteAuthenticator) SetRedirect(c router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) rawToken(c router.Context) (string, error) {
	extractors := jwtware.GetExtractors(a.cfg.GetTokenLookup(), a.cfg.GetAuthScheme())
	return jwtware.ExtractRawTokenFromContext(c, extractors)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error",
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	if c.Method() == http.MethodGet {
		a.SetRedirect(c)
	}

	return c.JSON(http.StatusUnauthorized, AuthResponse{
		OK:     false,
		Status: http.StatusUnauthorized,
		Error:  "Please sign in to continue",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		a.Logger.Error("Middleware error handler", "error", richErr)
		return writeError(c, richErr)
	}
}

// SafeRedirect returns target when it is a local absolute path, def otherwise
func SafeRedirect(target, def string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return def
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return def
	}

	return target
}
