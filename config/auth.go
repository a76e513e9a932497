package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	auth "github.com/goliatone/go-credentials"
)

// AuthConfig holds the session and credential settings
type AuthConfig struct {
	SigningKey            string        `koanf:"signing_key" json:"signing_key"`
	SigningMethod         string        `koanf:"signing_method" json:"signing_method"`
	ContextKey            string        `koanf:"context_key" json:"context_key"`
	TokenExpiration       int           `koanf:"token_expiration" json:"token_expiration"`
	ExtendedTokenDuration int           `koanf:"extended_token_duration" json:"extended_token_duration"`
	UpdateAge             time.Duration `koanf:"update_age" json:"update_age"`
	TokenLookup           string        `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme            string        `koanf:"auth_scheme" json:"auth_scheme"`
	Issuer                string        `koanf:"issuer" json:"issuer"`
	Audience              []string      `koanf:"audience" json:"audience"`
	RejectedRouteKey      string        `koanf:"rejected_route_key" json:"rejected_route_key"`
	RejectedRouteDefault  string        `koanf:"rejected_route_default" json:"rejected_route_default"`
	CookieSecure          bool          `koanf:"cookie_secure" json:"cookie_secure"`
	BcryptCost            int           `koanf:"bcrypt_cost" json:"bcrypt_cost"`
	PhoneRegion           string        `koanf:"phone_region" json:"phone_region"`
	SignInRateLimit       int           `koanf:"signin_rate_limit" json:"signin_rate_limit"`
	SignInRateWindow      time.Duration `koanf:"signin_rate_window" json:"signin_rate_window"`
}

var _ auth.Config = AuthConfig{}

func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey,
			validation.Required.Error("a signing key is required"),
			validation.RuneLength(32, 0).Error("the signing key must be at least 32 characters"),
		),
		validation.Field(&a.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&a.ContextKey, validation.Required),
		validation.Field(&a.TokenExpiration, validation.Min(1)),
		validation.Field(&a.ExtendedTokenDuration, validation.Min(1)),
		validation.Field(&a.Issuer, validation.Required),
		validation.Field(&a.Audience, validation.Required),
		validation.Field(&a.PhoneRegion, validation.Required, validation.Length(2, 2)),
		validation.Field(&a.SignInRateLimit, validation.Min(0)),
	)
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetSigningMethod() string {
	return a.SigningMethod
}

func (a AuthConfig) GetContextKey() string {
	return a.ContextKey
}

// GetTokenExpiration is the regular session lifetime in hours
func (a AuthConfig) GetTokenExpiration() int {
	return a.TokenExpiration
}

// GetExtendedTokenDuration is the remember me lifetime in hours
func (a AuthConfig) GetExtendedTokenDuration() int {
	return a.ExtendedTokenDuration
}

func (a AuthConfig) GetUpdateAge() time.Duration {
	return a.UpdateAge
}

func (a AuthConfig) GetTokenLookup() string {
	return a.TokenLookup
}

func (a AuthConfig) GetAuthScheme() string {
	return a.AuthScheme
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAudience() []string {
	out := make([]string, 0, len(a.Audience))
	for _, entry := range a.Audience {
		// env overrides arrive as one comma separated value
		for _, aud := range strings.Split(entry, ",") {
			if aud = strings.TrimSpace(aud); aud != "" {
				out = append(out, aud)
			}
		}
	}
	return out
}

func (a AuthConfig) GetRejectedRouteKey() string {
	return a.RejectedRouteKey
}

func (a AuthConfig) GetRejectedRouteDefault() string {
	return a.RejectedRouteDefault
}

func (a AuthConfig) GetCookieSecure() bool {
	return a.CookieSecure
}
