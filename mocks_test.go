package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/persistence"
)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) InsertUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPasswordHasher implements auth.PasswordHasher
type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Compare(hash, password string) error {
	args := m.Called(hash, password)
	return args.Error(0)
}

// MockConfig implements auth.Config with plain fields
type MockConfig struct {
	SigningKey            string
	ContextKey            string
	TokenExpiration       int
	ExtendedTokenDuration int
	UpdateAge             time.Duration
	TokenLookup           string
	Issuer                string
	Audience              []string
}

func (c MockConfig) GetSigningKey() string           { return c.SigningKey }
func (c MockConfig) GetSigningMethod() string        { return "HS256" }
func (c MockConfig) GetContextKey() string           { return c.ContextKey }
func (c MockConfig) GetTokenExpiration() int         { return c.TokenExpiration }
func (c MockConfig) GetExtendedTokenDuration() int   { return c.ExtendedTokenDuration }
func (c MockConfig) GetUpdateAge() time.Duration     { return c.UpdateAge }
func (c MockConfig) GetTokenLookup() string          { return c.TokenLookup }
func (c MockConfig) GetAuthScheme() string           { return "Bearer" }
func (c MockConfig) GetIssuer() string               { return c.Issuer }
func (c MockConfig) GetAudience() []string           { return c.Audience }
func (c MockConfig) GetRejectedRouteKey() string     { return "login_redirect" }
func (c MockConfig) GetRejectedRouteDefault() string { return "/" }
func (c MockConfig) GetCookieSecure() bool           { return false }

func testConfig() MockConfig {
	return MockConfig{
		SigningKey:            "test-signing-key-0123456789abcdef",
		ContextKey:            "jwt",
		TokenExpiration:       1,
		ExtendedTokenDuration: 48,
		UpdateAge:             10 * time.Minute,
		TokenLookup:           "header:Authorization,cookie:jwt",
		Issuer:                "credentials-test",
		Audience:              []string{"credentials-test"},
	}
}

func newTokenService(cfg auth.Config) *auth.TokenServiceImpl {
	return auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetSigningMethod(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		nil,
	)
}

// recordingSink keeps every activity event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.ActivityEvent(nil), r.events...)
}

func (r *recordingSink) Last() auth.ActivityEvent {
	events := r.Events()
	if len(events) == 0 {
		return auth.ActivityEvent{}
	}
	return events[len(events)-1]
}

// newTestDB opens a private in memory SQLite database with the schema applied
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := persistence.Open(persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(context.Background(), db.DB, persistence.DriverSQLite, nil))
	return db
}

func sampleUser(t *testing.T, hasher auth.PasswordHasher, password string) *auth.User {
	t.Helper()

	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	return &auth.User{
		ID:           uuid.New(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		Phone:        "+447400123456",
		PasswordHash: hash,
	}
}

func validRegistration() auth.RegistrationInput {
	return auth.RegistrationInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "Ada@Example.com",
		Phone:           "+447400123456",
		Password:        "Secret#2024",
		ConfirmPassword: "Secret#2024",
		Accepted:        true,
	}
}
