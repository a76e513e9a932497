package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-credentials"
)

func TestMetricsActivitySink(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	sink, err := auth.NewMetricsActivitySink(reg)
	require.NoError(t, err)

	events := []auth.ActivityEvent{
		{EventType: auth.ActivityEventSignInSuccess},
		{EventType: auth.ActivityEventSignInSuccess},
		{EventType: auth.ActivityEventSignInFailure, Reason: "invalid_password"},
		{EventType: auth.ActivityEventSignUpSuccess},
		{EventType: auth.ActivityEventSignUpFailure, Reason: "duplicate_email"},
		{EventType: auth.ActivityEventSignOut},
	}
	for _, e := range events {
		require.NoError(t, sink.Record(ctx, e))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.SignIn().WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.SignIn().WithLabelValues("failure", "invalid_password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.SignUp().WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.SignUp().WithLabelValues("failure", "duplicate_email")))

	n, err := testutil.GatherAndCount(reg, "credentials_signout_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = auth.NewMetricsActivitySink(reg)
	assert.Error(t, err, "collectors are registered once per registry")
}

func TestMetricsActivitySinkFromProvider(t *testing.T) {
	ctx := context.Background()
	sink, err := auth.NewMetricsActivitySink(nil)
	require.NoError(t, err)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	user := sampleUser(t, hasher, "Secret#2024")

	store := new(MockCredentialStore)
	store.On("FindUserByEmail", ctx, "ada@example.com").Return(user, nil)

	provider := auth.NewCredentialsProvider(store, hasher).WithActivitySink(sink)
	_, _ = provider.Authenticate(ctx, "ada@example.com", "Secret#2024")
	_, _ = provider.Authenticate(ctx, "ada@example.com", "nope")

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.SignIn().WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.SignIn().WithLabelValues("failure", "invalid_password")))
}

func TestMultiActivitySink(t *testing.T) {
	ctx := context.Background()
	first := &recordingSink{}
	second := &recordingSink{}
	boom := errors.New("sink down")

	multi := auth.MultiActivitySink{
		first,
		nil,
		auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error { return boom }),
		second,
	}

	err := multi.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignOut})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)

	var nilFunc auth.ActivitySinkFunc
	assert.NoError(t, nilFunc.Record(ctx, auth.ActivityEvent{}))
}

func TestFailingSinkNeverFailsSignIn(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	user := sampleUser(t, hasher, "Secret#2024")

	store := new(MockCredentialStore)
	store.On("FindUserByEmail", ctx, "ada@example.com").Return(user, nil)

	failing := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink down")
	})

	out, err := auth.NewCredentialsProvider(store, hasher).
		WithActivitySink(failing).
		Authenticate(ctx, "ada@example.com", "Secret#2024")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), out.ID)
}

func TestActivityEventsCarryTimestamps(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	store := new(MockCredentialStore)
	store.On("FindUserByEmail", ctx, "ghost@example.com").Return(nil, auth.ErrUserNotFound)

	_, _ = auth.NewCredentialsProvider(store, auth.NewBcryptHasher(bcrypt.MinCost)).
		WithActivitySink(sink).
		Authenticate(ctx, "ghost@example.com", "pw")

	last := sink.Last()
	assert.False(t, last.OccurredAt.IsZero())
	assert.Equal(t, "ghost@example.com", last.Email)
}
