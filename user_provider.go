package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// CredentialsProvider authenticates an email and password pair against the
// credential store. It never writes.
type CredentialsProvider struct {
	store    CredentialStore
	hasher   PasswordHasher
	logger   Logger
	activity ActivitySink
}

var _ Authenticator = (*CredentialsProvider)(nil)

// NewCredentialsProvider will create a new CredentialsProvider
func NewCredentialsProvider(store CredentialStore, hasher PasswordHasher) *CredentialsProvider {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &CredentialsProvider{
		store:    store,
		hasher:   hasher,
		logger:   defLogger,
		activity: noopActivitySink{},
	}
}

func (p *CredentialsProvider) WithLogger(l Logger) *CredentialsProvider {
	p.logger = normalizeLogger(l)
	return p
}

func (p *CredentialsProvider) WithActivitySink(s ActivitySink) *CredentialsProvider {
	p.activity = normalizeActivitySink(s)
	return p
}

// Authenticate looks the user up once by email, then checks the password.
// Failures are ErrUserNotFound, ErrMissingPassword, ErrInvalidPassword or
// ErrStoreUnavailable. Lookup happens before the password check.
func (p *CredentialsProvider) Authenticate(ctx context.Context, identifier, password string) (*SanitizedUser, error) {
	email := NormalizeEmail(identifier)
	if email == "" {
		p.burn(password)
		return nil, p.fail(ctx, email, sentinelError(ErrUserNotFound, nil))
	}

	user, err := p.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			p.burn(password)
			return nil, p.fail(ctx, email, sentinelError(ErrUserNotFound, nil))
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, p.fail(ctx, email, err)
		}
		return nil, p.fail(ctx, email, sentinelError(ErrStoreUnavailable, err))
	}

	if user == nil {
		p.burn(password)
		return nil, p.fail(ctx, email, sentinelError(ErrUserNotFound, nil))
	}

	if password == "" {
		p.burn(password)
		return nil, p.fail(ctx, email, sentinelError(ErrMissingPassword, nil))
	}

	if err := p.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			p.logger.Error("password comparison failed", "user_id", user.ID.String(), "error", err)
		}
		return nil, p.fail(ctx, email, sentinelError(ErrInvalidPassword, nil))
	}

	out := user.Sanitize()

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    out.ID,
		Email:     out.Email,
	})

	return out, nil
}

func (p *CredentialsProvider) burn(password string) {
	if t, ok := p.hasher.(timingEqualizer); ok {
		t.burn(password)
	}
}

func (p *CredentialsProvider) fail(ctx context.Context, email string, err error) error {
	reason := "unknown"
	var rich *errors.Error
	if errors.As(err, &rich) && rich.TextCode != "" {
		reason = strings.ToLower(rich.TextCode)
	}

	p.logger.Info("sign in rejected", "email", email, "reason", reason)

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType: ActivityEventSignInFailure,
		Email:     email,
		Reason:    reason,
	})

	return err
}
