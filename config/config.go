// Package config loads the service configuration. Values are layered from
// built in defaults, an optional YAML file, CREDENTIALS_ environment
// variables and finally command line flags.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides, CREDENTIALS_AUTH_ISSUER
// sets auth.issuer.
const EnvPrefix = "CREDENTIALS_"

type Config struct {
	Auth        AuthConfig        `koanf:"auth" json:"auth"`
	Server      ServerConfig      `koanf:"server" json:"server"`
	Persistence PersistenceConfig `koanf:"persistence" json:"persistence"`
	Redis       RedisConfig       `koanf:"redis" json:"redis"`
	Log         LogConfig         `koanf:"log" json:"log"`
	Metrics     MetricsConfig     `koanf:"metrics" json:"metrics"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate" json:"auto_migrate"`
}

type PersistenceConfig struct {
	Driver string `koanf:"driver" json:"driver"`
	DSN    string `koanf:"dsn" json:"dsn"`
	Debug  bool   `koanf:"debug" json:"debug"`
}

// RedisConfig enables the shared revocation list when Addr is set
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr"`
	Password string `koanf:"password" json:"password"`
	DB       int    `koanf:"db" json:"db"`
	Prefix   string `koanf:"prefix" json:"prefix"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Path    string `koanf:"path" json:"path"`
}

// Defaults returns the flattened default values
func Defaults() map[string]any {
	return map[string]any{
		"auth.signing_key":             "",
		"auth.signing_method":          "HS256",
		"auth.context_key":             "jwt",
		"auth.token_expiration":        24,
		"auth.extended_token_duration": 24 * 30,
		"auth.update_age":              "1h",
		"auth.token_lookup":            "header:Authorization,cookie:jwt",
		"auth.auth_scheme":             "Bearer",
		"auth.issuer":                  "go-credentials",
		"auth.audience":                []string{"go-credentials"},
		"auth.rejected_route_key":      "login_redirect",
		"auth.rejected_route_default":  "/",
		"auth.cookie_secure":           true,
		"auth.bcrypt_cost":             0,
		"auth.phone_region":            "US",
		"auth.signin_rate_limit":       10,
		"auth.signin_rate_window":      "1m",

		"server.addr":             ":8978",
		"server.read_timeout":     "10s",
		"server.write_timeout":    "10s",
		"server.shutdown_timeout": "15s",
		"server.auto_migrate":     false,

		"persistence.driver": "sqlite",
		"persistence.dsn":    "file:credentials.db?cache=shared",
		"persistence.debug":  false,

		"redis.addr":   "",
		"redis.db":     0,
		"redis.prefix": "credentials:revoked:",

		"log.level":  "info",
		"log.format": "json",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"migrate":      "server.auto_migrate",
	"db-driver":    "persistence.driver",
	"db-dsn":       "persistence.dsn",
	"db-debug":     "persistence.debug",
	"redis-addr":   "redis.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"signing-key":  "auth.signing_key",
	"issuer":       "auth.issuer",
	"insecure":     "auth.cookie_secure",
	"metrics-path": "metrics.path",
}

// Load builds the configuration. path and flags are optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadForMigrations only checks the sections the migrate command uses, it
// runs without a signing key.
func LoadForMigrations(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}

	err = validation.ValidateStruct(cfg,
		validation.Field(&cfg.Persistence),
		validation.Field(&cfg.Log),
	)
	if err != nil {
		return nil, errors.FromOzzoValidation(err, "invalid configuration").
			WithTextCode("CONFIG_INVALID")
	}

	return cfg, nil
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to set default configuration")
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load configuration file").
				WithTextCode("CONFIG_INVALID").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load environment configuration").
			WithTextCode("CONFIG_INVALID")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey), nil); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load flag configuration").
				WithTextCode("CONFIG_INVALID")
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to decode configuration").
			WithTextCode("CONFIG_INVALID")
	}

	return cfg, nil
}

// envKey turns CREDENTIALS_AUTH_SIGNING_KEY into auth.signing_key
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func flagKey(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	if f.Name == "insecure" {
		return key, f.Value.String() != "true"
	}
	return key, f.Value.String()
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Auth),
		validation.Field(&c.Server),
		validation.Field(&c.Persistence),
		validation.Field(&c.Log),
	)
	if err == nil {
		return nil
	}

	return errors.FromOzzoValidation(err, "invalid configuration").
		WithTextCode("CONFIG_INVALID")
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Second)),
	)
}

func (p PersistenceConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In("sqlite", "sqlite3", "postgres", "pg")),
		validation.Field(&p.DSN, validation.Required),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.Required, validation.In("json", "text", "pretty")),
	)
}
