package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterUserMessage wraps a registration so it can be dispatched as a
// command. OnResponse receives the created user.
type RegisterUserMessage struct {
	Input      RegistrationInput
	OnResponse func(*SanitizedUser)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates accounts
type RegisterUserHandler struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
}

func NewRegisterUserHandler(repo RepositoryManager, hasher PasswordHasher) *RegisterUserHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &RegisterUserHandler{
		repo:     repo,
		hasher:   hasher,
		logger:   defLogger,
		activity: noopActivitySink{},
		timeout:  10 * time.Second,
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(l)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(s ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(s)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		user, err := h.Register(ctx, event.Input)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(user)
		}
		return nil
	}
}

// Register validates the input again, hashes the password and inserts the
// user. Confirm password and terms acceptance are dropped. Nothing is
// retried and a failed insert leaves no row behind.
func (h *RegisterUserHandler) Register(ctx context.Context, input RegistrationInput) (*SanitizedUser, error) {
	if err := input.Validate(); err != nil {
		return nil, h.fail(ctx, input.Email, err)
	}

	in := input.Normalize()

	hash, err := h.hasher.Hash(in.Password)
	if err != nil {
		return nil, h.fail(ctx, in.Email, err)
	}

	user := &User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Users().InsertUserTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			err = sentinelError(ErrStoreUnavailable, err, map[string]any{
				"operation": "register_user",
			})
		}
		return nil, h.fail(ctx, in.Email, err)
	}

	out := user.Sanitize()

	h.logger.Info("user registered", "user_id", out.ID)
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		UserID:    out.ID,
		Email:     out.Email,
		Metadata: map[string]any{
			"password_strength": PasswordStrength(in.Password),
		},
	})

	return out, nil
}

func (h *RegisterUserHandler) fail(ctx context.Context, email string, err error) error {
	reason := "unknown"
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		reason = strings.ToLower(rich.TextCode)
	}

	h.logger.Info("registration rejected", "email", NormalizeEmail(email), "error", err)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignUpFailure,
		Email:     NormalizeEmail(email),
		Reason:    reason,
	})

	return err
}
