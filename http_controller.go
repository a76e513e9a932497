package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthResponse is the JSON body of every auth endpoint
type AuthResponse struct {
	OK               bool              `json:"ok"`
	Status           int               `json:"status"`
	Error            string            `json:"error,omitempty"`
	TextCode         string            `json:"text_code,omitempty"`
	URL              string            `json:"url,omitempty"`
	User             *SanitizedUser    `json:"user,omitempty"`
	Validation       map[string]string `json:"validation,omitempty"`
	PasswordStrength *int              `json:"password_strength,omitempty"`
	StrengthLabel    string            `json:"strength_label,omitempty"`
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	signIn := []router.MiddlewareFunc{}
	if controller.SignInRateLimit > 0 {
		signIn = append(signIn, signInLimiter(controller.SignInRateLimit, controller.SignInRateWindow))
	}

	app.Post(controller.Routes.SignIn, controller.SignInPost, signIn...).
		SetName("sign-in.post")
	app.Post(controller.Routes.SignUp, controller.SignUpPost).
		SetName("sign-up.post")
	app.Post(controller.Routes.SignOut, controller.SignOut).
		SetName("sign-out.post")
	app.Get(controller.Routes.Session, controller.SessionGet).
		SetName("session.get")
	app.Post(controller.Routes.ValidateSignUp, controller.ValidateSignUp).
		SetName("sign-up.validate")
	app.Get(controller.Routes.Me, controller.Me, controller.Auther.ProtectedRoute(false)).
		SetName("me.get")

	return controller
}

type AuthControllerRoutes struct {
	SignIn         string
	SignUp         string
	SignOut        string
	Session        string
	ValidateSignUp string
	Me             string
}

type AuthController struct {
	Debug            bool
	Logger           Logger
	Routes           *AuthControllerRoutes
	Auther           *RouteAuthenticator
	Registrar        *RegisterUserHandler
	SignInRateLimit  int
	SignInRateWindow time.Duration
	ErrorHandler     router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithRouteAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithRegistrar(h *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registrar = h
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithSignInRateLimit allows max attempts per client IP in window. Zero
// disables the limiter.
func WithSignInRateLimit(max int, window time.Duration) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.SignInRateLimit = max
		if window > 0 {
			c.SignInRateWindow = window
		}
		return c
	}
}

func WithRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = &routes
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:           defLogger,
		ErrorHandler:     defaultErrHandler,
		SignInRateWindow: time.Minute,
		Routes: &AuthControllerRoutes{
			SignIn:         "/auth/signin",
			SignUp:         "/auth/signup",
			SignOut:        "/auth/signout",
			Session:        "/auth/session",
			ValidateSignUp: "/auth/validate/signup",
			Me:             "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Registrar == nil {
		panic("Missing RegisterUserHandler in auth controller...")
	}

	return c
}

func (a *AuthController) SignInPost(ctx router.Context) error {
	payload := new(SignInInput)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse sign in payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, err := a.Auther.SignIn(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// the remembered route is consumed even when the client names its own
	stored := a.Auther.GetRedirect(ctx, "/")
	redirect := SafeRedirect(payload.CallbackURL, stored)

	return ctx.JSON(http.StatusOK, AuthResponse{
		OK:     true,
		Status: http.StatusOK,
		URL:    redirect,
		User:   user,
	})
}

func (a *AuthController) SignUpPost(ctx router.Context) error {
	payload := new(RegistrationInput)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse registration payload").
			WithCode(errors.CodeBadRequest))
	}

	user, err := a.Registrar.Register(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	strength := PasswordStrength(payload.Password)

	return ctx.JSON(http.StatusCreated, AuthResponse{
		OK:               true,
		Status:           http.StatusCreated,
		User:             user,
		PasswordStrength: &strength,
		StrengthLabel:    StrengthLabel(strength),
	})
}

// ValidateSignUp runs the registration rules without creating anything
func (a *AuthController) ValidateSignUp(ctx router.Context) error {
	payload := new(RegistrationInput)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse registration payload").
			WithCode(errors.CodeBadRequest))
	}

	strength := PasswordStrength(payload.Password)
	res := AuthResponse{
		OK:               true,
		Status:           http.StatusOK,
		PasswordStrength: &strength,
		StrengthLabel:    StrengthLabel(strength),
	}

	if err := payload.Validate(); err != nil {
		res.OK = false
		res.Validation = ValidationFields(err)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (a *AuthController) SignOut(ctx router.Context) error {
	if err := a.Auther.SignOut(ctx); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, AuthResponse{
		OK:     true,
		Status: http.StatusOK,
		URL:    "/",
	})
}

func (a *AuthController) SessionGet(ctx router.Context) error {
	session, err := a.Auther.CurrentSession(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, session)
}

func (a *AuthController) Me(ctx router.Context) error {
	user, ok := CurrentUser(ctx.Context())
	if !ok {
		return a.ErrorHandler(ctx, sentinelError(ErrUnableToFindSession, nil))
	}
	return ctx.JSON(http.StatusOK, user)
}

func defaultErrHandler(c router.Context, err error) error {
	return writeError(c, err)
}

// writeError renders err as an AuthResponse. Credential failures share
// one public message whatever the cause.
func writeError(c router.Context, err error) error {
	status := StatusCode(err)
	res := AuthResponse{
		OK:     false,
		Status: status,
		Error:  PublicMessage(err),
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		if rich.Category == errors.CategoryBadInput {
			res.Error = rich.Message
		}
		if !IsCredentialError(err) {
			res.TextCode = rich.TextCode
		}
		res.Validation = ValidationFields(err)
	}

	return c.JSON(status, res)
}
