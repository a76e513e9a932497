package persistence_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/persistence"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	db, err := persistence.Open(persistence.Options{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Nil(t, db)

	var rich *errors.Error
	require.True(t, errors.As(err, &rich))
	assert.Equal(t, "UNSUPPORTED_DRIVER", rich.TextCode)
}

func TestMigrate_SQLiteMemory(t *testing.T) {
	ctx := context.Background()

	db, err := persistence.Open(persistence.Options{
		Driver: "sqlite3",
		DSN:    "file::memory:?cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Ping(ctx, db))
	require.NoError(t, persistence.Migrate(ctx, db.DB, "sqlite", nil))

	version, err := persistence.Version(ctx, db.DB, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// running twice is a no-op
	require.NoError(t, persistence.Migrate(ctx, db.DB, "sqlite", nil))

	users := auth.NewUsersRepository(db)
	created, err := users.InsertUser(ctx, &auth.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "Ada@Example.com",
		Phone:        "+447400123456",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	found, err := users.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, persistence.Rollback(ctx, db.DB, "sqlite", nil))

	version, err = persistence.Version(ctx, db.DB, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}
