package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/activitymap"
	"github.com/goliatone/go-credentials/config"
	"github.com/goliatone/go-credentials/persistence"
	"github.com/goliatone/go-credentials/sessionstore"
)

// App holds everything the serve command wires together
type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	repo     auth.RepositoryManager
	redis    redis.UniversalClient
	revoker  auth.SessionRevoker
	registry *prometheus.Registry
	activity auth.MultiActivitySink
	sessions *auth.SessionManager
	srv      router.Server[*fiber.App]
}

// NewApp builds the service. Close releases what was opened even when a
// later step failed.
func NewApp(ctx context.Context, cfg *config.Config, logger *glog.BaseLogger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	steps := []func(context.Context) error{
		app.withPersistence,
		app.withRevoker,
		app.withActivity,
		app.withHTTPServer,
		app.withHTTPAuth,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// GetLogger returns the named child of the application logger.
func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) Server() router.Server[*fiber.App] {
	return a.srv
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

func (a *App) withPersistence(ctx context.Context) error {
	cfg := a.config.Persistence

	db, err := persistence.Open(persistence.Options{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Debug:  cfg.Debug,
	})
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Server.AutoMigrate {
		lgr := a.GetLogger("migrate")
		if err := persistence.Migrate(ctx, db.DB, cfg.Driver, lgr); err != nil {
			return err
		}
	}

	a.repo = auth.NewRepositoryManager(db)
	return a.repo.Validate()
}

func (a *App) withRevoker(ctx context.Context) error {
	cfg := a.config.Redis
	if !cfg.Enabled() {
		a.logger.Warn("redis not configured, revoked sessions are kept in memory")
		a.revoker = auth.NewMemoryRevoker()
		return nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	revoker := sessionstore.NewRedisRevoker(a.redis, sessionstore.WithPrefix(cfg.Prefix))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := revoker.Ping(pingCtx); err != nil {
		return err
	}

	a.revoker = revoker
	return nil
}

func (a *App) withActivity(context.Context) error {
	a.activity = auth.MultiActivitySink{
		activitymap.LogSink(a.GetLogger("activity")),
	}

	if !a.config.Metrics.Enabled {
		return nil
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := auth.NewMetricsActivitySink(a.registry)
	if err != nil {
		return err
	}
	a.activity = append(a.activity, sink)

	return nil
}

func (a *App) withHTTPServer(context.Context) error {
	cfg := a.config.Server
	httpLogger := a.GetLogger("http")

	a.srv = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "credentials",
			ReadTimeout:           cfg.ReadTimeout,
			WriteTimeout:          cfg.WriteTimeout,
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler(httpLogger),
		})

		app.Use(recover.New())
		app.Use(requestid.New())
		app.Use(requestLogger(httpLogger))
		app.Use(healthcheck.New(healthcheck.Config{
			ReadinessProbe: func(c *fiber.Ctx) bool {
				return persistence.Ping(c.UserContext(), a.db) == nil
			},
		}))

		if a.registry != nil {
			app.Get(a.config.Metrics.Path, adaptor.HTTPHandler(
				promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			)).Name("metrics")
		}

		return app
	})

	a.srv.Router().WithLogger(a.GetLogger("router"))

	return nil
}

func (a *App) withHTTPAuth(context.Context) error {
	cfg := a.config.Auth
	lgr := a.GetLogger("auth")

	auth.DefaultPhoneRegion = cfg.PhoneRegion

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	provider := auth.NewCredentialsProvider(a.repo.Users(), hasher).
		WithLogger(lgr).
		WithActivitySink(a.activity)

	tokens := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetSigningMethod(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		lgr,
	)

	a.sessions = auth.NewSessionManager(cfg, tokens,
		auth.WithSessionRevoker(a.revoker),
		auth.WithSessionLogger(lgr),
		auth.WithSessionActivitySink(a.activity),
	)

	httpAuth, err := auth.NewHTTPAuthenticator(provider, a.sessions, cfg)
	if err != nil {
		return err
	}
	httpAuth.WithLogger(lgr)

	registrar := auth.NewRegisterUserHandler(a.repo, hasher).
		WithLogger(lgr).
		WithActivitySink(a.activity)

	auth.RegisterAuthRoutes(a.srv.Router(),
		auth.WithRouteAuthenticator(httpAuth),
		auth.WithRegistrar(registrar),
		auth.WithControllerLogger(lgr),
		auth.WithSignInRateLimit(cfg.SignInRateLimit, cfg.SignInRateWindow),
	)

	return nil
}

func requestLogger(logger glog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.WithContext(c.UserContext()).Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"request_id", c.Locals("requestid"),
		)
		return err
	}
}

func errorHandler(logger glog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Something went wrong"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", "path", c.Path(), "error", err)
		}

		return c.Status(status).JSON(auth.AuthResponse{
			OK:     false,
			Status: status,
			Error:  message,
		})
	}
}

// setupLogging builds the application logger. Components get named children
// through GetLogger.
func setupLogging(format, level string) (*glog.BaseLogger, error) {
	var kind glog.Option
	switch format {
	case "json":
		kind = glog.WithLoggerTypeJSON()
	case "text":
		kind = glog.WithLoggerTypeConsole()
	case "pretty":
		kind = glog.WithLoggerTypePretty()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'json', 'text' or 'pretty'", format)
	}

	switch lvl := strings.ToUpper(level); lvl {
	case glog.Trace, glog.Debug, glog.Info, glog.Warn, glog.Error:
		level = lvl
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return auth.NewLogger(
		kind,
		glog.WithLevel(level),
		glog.WithName("app"),
		glog.WithWriter(os.Stderr),
	), nil
}
