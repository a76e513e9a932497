package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/goliatone/go-credentials/config"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the HTTP service exposing sign up, sign in, sign out and session
routes. Configuration is read from the config file, CREDENTIALS_ environment
variables and the flags below, in that order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.Flags())
		},
	}

	addServerFlags(cmd.Flags())

	return cmd
}

func addServerFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8978", "HTTP listen address")
	fs.Bool("migrate", false, "apply pending migrations before serving")
	fs.String("db-driver", "sqlite", "database driver (sqlite or postgres)")
	fs.String("db-dsn", "", "database connection string")
	fs.Bool("db-debug", false, "log every query")
	fs.String("redis-addr", "", "redis address for the revocation list (empty = in memory)")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json, text or pretty)")
	fs.String("signing-key", "", "session token signing key")
	fs.String("issuer", "", "session token issuer")
	fs.Bool("insecure", false, "allow session cookies over plain HTTP")
	fs.String("metrics-path", "/metrics", "prometheus metrics path")
}

func runServe(ctx context.Context, flags *pflag.FlagSet) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer app.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "driver", cfg.Persistence.Driver)
		errCh <- app.Server().Serve(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server().Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("error during shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
