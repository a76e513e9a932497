// Package persistence opens the bun database behind the credential store and
// applies the embedded goose migrations.
package persistence

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	auth "github.com/goliatone/go-credentials"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the driver and connection string of the store
type Options struct {
	Driver string
	DSN    string
	Debug  bool
}

// Open connects to the database described by opts. In memory SQLite
// databases are pinned to a single connection so every query sees the same
// data.
func Open(opts Options) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch normalizeDriver(opts.Driver) {
	case DriverSQLite:
		sqldb, err = sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "failed to open sqlite database")
		}
		if strings.Contains(opts.DSN, ":memory:") || strings.Contains(opts.DSN, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, errors.New("unsupported persistence driver", errors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER").
			WithMetadata(map[string]any{"driver": opts.Driver})
	}

	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}

// Ping checks the connection, used by the readiness check
func Ping(ctx context.Context, db *bun.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "database is not reachable").
			WithCode(http.StatusServiceUnavailable)
	}
	return nil
}

// Migrate applies every pending migration of the driver dialect
func Migrate(ctx context.Context, db *sql.DB, driver string, logger auth.Logger) error {
	driver = normalizeDriver(driver)

	if err := configureGoose(driver, logger); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, auth.MigrationsDir(driver)); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "migration failed").
			WithTextCode("MIGRATION_FAILED")
	}

	return nil
}

// Rollback reverts the most recent migration
func Rollback(ctx context.Context, db *sql.DB, driver string, logger auth.Logger) error {
	driver = normalizeDriver(driver)

	if err := configureGoose(driver, logger); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, db, auth.MigrationsDir(driver)); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "rollback failed").
			WithTextCode("MIGRATION_FAILED")
	}

	return nil
}

// Version returns the current schema version
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if err := configureGoose(normalizeDriver(driver), nil); err != nil {
		return 0, err
	}

	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryOperation, "failed to read schema version")
	}
	return v, nil
}

func configureGoose(driver string, logger auth.Logger) error {
	goose.SetBaseFS(auth.GetMigrationsFS())

	dialect := "sqlite3"
	if driver == DriverPostgres {
		dialect = "postgres"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to set migration dialect")
	}

	if logger == nil {
		goose.SetLogger(goose.NopLogger())
	} else {
		goose.SetLogger(gooseLogger{logger})
	}

	return nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres
	default:
		return driver
	}
}
