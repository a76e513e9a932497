package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-credentials"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := auth.NewMemoryRevoker()

	revoked, err := r.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "token-1", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens are not worth remembering
	require.NoError(t, r.Revoke(ctx, "token-2", time.Now().Add(-time.Second)))
	revoked, err = r.IsRevoked(ctx, "token-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "", time.Now().Add(time.Hour)))
	assert.Equal(t, 1, r.Len())
}

func TestMemoryRevokerForgetsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	r := auth.NewMemoryRevoker()

	require.NoError(t, r.Revoke(ctx, "short", time.Now().Add(50*time.Millisecond)))
	require.NoError(t, r.Revoke(ctx, "long", time.Now().Add(time.Hour)))
	assert.Equal(t, 2, r.Len())

	assert.Eventually(t, func() bool {
		return r.Len() == 1
	}, time.Second, 10*time.Millisecond)

	revoked, err := r.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevokerConcurrentUse(t *testing.T) {
	ctx := context.Background()
	r := auth.NewMemoryRevoker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.NewString()
			_ = r.Revoke(ctx, id, time.Now().Add(time.Minute))
			ok, _ := r.IsRevoked(ctx, id)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
