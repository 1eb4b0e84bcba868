package authkit_test

import (
	"testing"
	"time"

	authkit "github.com/goliatone/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, newTestConfig().Validate())
	})

	t.Run("short signing secret", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.SigningSecret = "short"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeConfiguration, authkit.TextCode(err))
	})

	t.Run("missing base url", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.BaseURL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("malformed base url", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.BaseURL = "not a url"
		require.Error(t, cfg.Validate())
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_BASE_URL", "https://app.example.com")
	t.Setenv("AUTH_COOKIE_NAME", "custom.token")
	t.Setenv("AUTH_COOKIE_DOMAIN", "example.com")
	t.Setenv("AUTH_SESSION_MAX_AGE", "3600")
	t.Setenv("AUTH_SESSION_UPDATE_AGE", "600")

	cfg := authkit.ConfigFromEnv()

	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.SigningSecret)
	assert.Equal(t, "https://app.example.com", cfg.BaseURL)
	assert.Equal(t, "custom.token", cfg.CookieName)
	assert.Equal(t, "example.com", cfg.CookieDomain)
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 10*time.Minute, cfg.SessionUpdateAge)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvIgnoresBadDurations(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_BASE_URL", "https://app.example.com")
	t.Setenv("AUTH_SESSION_MAX_AGE", "not-a-number")
	t.Setenv("AUTH_SESSION_UPDATE_AGE", "-5")

	cfg := authkit.ConfigFromEnv()

	assert.Zero(t, cfg.SessionMaxAge)
	assert.Zero(t, cfg.SessionUpdateAge)
}

func TestCookieDomainDerivation(t *testing.T) {
	cases := []struct {
		name    string
		baseURL string
		domain  string
	}{
		{"production host", "https://app.example.com", "app.example.com"},
		{"localhost stays empty", "http://localhost:3000", ""},
		{"loopback stays empty", "http://127.0.0.1:3000", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig()
			cfg.BaseURL = tc.baseURL

			_, err := authkit.New(cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.domain, cfg.CookieDomain)
		})
	}
}
