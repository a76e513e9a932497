package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-credentials/config"
	"github.com/goliatone/go-credentials/persistence"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply the embedded migrations, roll back the last one or print the schema version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForMigrations(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := setupLogging(cfg.Log.Format, cfg.Log.Level)
			if err != nil {
				return err
			}

			db, err := persistence.Open(persistence.Options{
				Driver: cfg.Persistence.Driver,
				DSN:    cfg.Persistence.DSN,
				Debug:  cfg.Persistence.Debug,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			lgr := logger.GetLogger("migrate")

			switch {
			case status:
			case down:
				cmd.Println("Rolling back last migration...")
				if err := persistence.Rollback(ctx, db.DB, cfg.Persistence.Driver, lgr); err != nil {
					return err
				}
			default:
				cmd.Println("Running migrations...")
				if err := persistence.Migrate(ctx, db.DB, cfg.Persistence.Driver, lgr); err != nil {
					return err
				}
			}

			v, err := persistence.Version(ctx, db.DB, cfg.Persistence.Driver)
			if err != nil {
				return err
			}
			cmd.Printf("Schema version: %d\n", v)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "only print the current schema version")
	cmd.Flags().String("db-driver", "sqlite", "database driver (sqlite or postgres)")
	cmd.Flags().String("db-dsn", "", "database connection string")
	cmd.Flags().String("log-format", "text", "log format (json, text or pretty)")

	return cmd
}
