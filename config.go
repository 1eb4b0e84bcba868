package authkit

import (
	"net/url"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultCookieName is the session token cookie.
	DefaultCookieName = "auth.session-token"

	// DefaultSessionKey is the server-side store key for the session record.
	DefaultSessionKey = "auth.session"

	defaultStateTTL = 10 * time.Minute
)

// Config holds the package configuration. The zero value is not usable;
// build one by hand or with ConfigFromEnv and call Validate before use.
type Config struct {
	// SigningSecret signs session tokens. At least 32 bytes.
	SigningSecret string

	// BaseURL is the application origin, e.g. "https://app.example.com".
	// Redirect targets outside it are rejected.
	BaseURL string

	// CookieName for the session token. Defaults to DefaultCookieName.
	CookieName string

	// CookieDomain for session cookies. Left empty it is derived from
	// BaseURL, staying empty for localhost and 127.0.0.1.
	CookieDomain string

	// SessionKey is the store key the session record lives under.
	SessionKey string

	// SessionMaxAge bounds session and token lifetime.
	SessionMaxAge time.Duration

	// SessionUpdateAge is how old a session may get before a read
	// refreshes its token. Zero disables the rolling refresh.
	SessionUpdateAge time.Duration

	// StateTTL bounds how long an unused anti-forgery state survives.
	StateTTL time.Duration

	// SignInRoute is where browser-mode middleware sends anonymous users.
	SignInRoute string

	// ErrorRoute receives failed browser sign-ins with error/code/provider
	// query parameters.
	ErrorRoute string

	// ForbiddenRoute receives browser users failing a permission check.
	ForbiddenRoute string

	// Issuer stamps the "iss" claim. Defaults to BaseURL.
	Issuer string
}

// Validate checks the configuration. Failures here are ConfigurationErrors
// and should abort startup.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningSecret, validation.Required, validation.Length(MinSecretLength, 0)),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid auth configuration").
			WithTextCode(TextCodeConfiguration)
	}
	return nil
}

// withDefaults fills unset optional fields in place and returns the config.
func (c *Config) withDefaults() *Config {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.SessionKey == "" {
		c.SessionKey = DefaultSessionKey
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = DefaultTokenTTL
	}
	if c.StateTTL <= 0 {
		c.StateTTL = defaultStateTTL
	}
	if c.SignInRoute == "" {
		c.SignInRoute = "/auth/signin"
	}
	if c.ErrorRoute == "" {
		c.ErrorRoute = "/auth/error"
	}
	if c.ForbiddenRoute == "" {
		c.ForbiddenRoute = "/auth/forbidden"
	}
	if c.Issuer == "" {
		c.Issuer = c.BaseURL
	}
	if c.CookieDomain == "" {
		c.CookieDomain = cookieDomainFor(c.BaseURL)
	}
	return c
}

// cookieDomainFor derives the cookie domain from the base URL. Loopback
// hosts get no domain so browsers accept the cookie during development.
func cookieDomainFor(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	host := parsed.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return ""
	}
	return host
}

// ConfigFromEnv reads the documented environment inputs:
//
//	AUTH_SIGNING_SECRET, AUTH_BASE_URL, AUTH_COOKIE_NAME,
//	AUTH_COOKIE_DOMAIN, AUTH_SESSION_MAX_AGE (seconds),
//	AUTH_SESSION_UPDATE_AGE (seconds)
//
// Provider credentials stay with the provider constructors.
func ConfigFromEnv() *Config {
	cfg := &Config{
		SigningSecret: os.Getenv("AUTH_SIGNING_SECRET"),
		BaseURL:       os.Getenv("AUTH_BASE_URL"),
		CookieName:    os.Getenv("AUTH_COOKIE_NAME"),
		CookieDomain:  os.Getenv("AUTH_COOKIE_DOMAIN"),
	}

	if v := os.Getenv("AUTH_SESSION_MAX_AGE"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SessionMaxAge = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("AUTH_SESSION_UPDATE_AGE"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SessionUpdateAge = time.Duration(secs) * time.Second
		}
	}

	return cfg
}
