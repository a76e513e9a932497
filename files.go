package auth

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsDir returns the directory holding the migrations of a dialect,
// "sqlite" or "postgres".
func MigrationsDir(dialect string) string {
	if dialect == "postgres" || dialect == "pg" {
		return "data/sql/migrations/postgres"
	}
	return "data/sql/migrations/sqlite"
}

// DialectMigrations returns the migration files of one dialect rooted at "."
func DialectMigrations(dialect string) (fs.FS, error) {
	return fs.Sub(migrationsFS, MigrationsDir(dialect))
}
