package client

import (
	"context"
	"sync/atomic"

	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-credentials"
)

// ErrSubmitInFlight is returned when a form is submitted again before the
// previous submission finished.
var ErrSubmitInFlight = errors.New("a submission is already in progress", errors.CategoryConflict).
	WithTextCode(auth.TextCodeSubmitInFlight).
	WithCode(errors.CodeConflict)

// submitGuard allows one outstanding submission per form
type submitGuard struct {
	submitting atomic.Bool
}

func (g *submitGuard) acquire() error {
	if !g.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	return nil
}

func (g *submitGuard) release() {
	g.submitting.Store(false)
}

// Submitting reports whether a submission is outstanding
func (g *submitGuard) Submitting() bool {
	return g.submitting.Load()
}

// SignInForm validates sign in input and submits it. Invalid input never
// reaches the network.
type SignInForm struct {
	submitGuard
	client *Client
}

func NewSignInForm(c *Client) *SignInForm {
	return &SignInForm{client: c}
}

func (f *SignInForm) Submit(ctx context.Context, in auth.SignInInput) (*auth.AuthResponse, error) {
	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	return f.client.SignIn(ctx, in)
}

// SignUpForm validates registration input and submits it
type SignUpForm struct {
	submitGuard
	client *Client
}

func NewSignUpForm(c *Client) *SignUpForm {
	return &SignUpForm{client: c}
}

func (f *SignUpForm) Submit(ctx context.Context, in auth.RegistrationInput) (*auth.AuthResponse, error) {
	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	return f.client.SignUp(ctx, in)
}

// Strength scores the password as it is typed, it does not block submission
func (f *SignUpForm) Strength(password string) (int, string) {
	score := auth.PasswordStrength(password)
	return score, auth.StrengthLabel(score)
}
