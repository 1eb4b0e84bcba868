package authkit_test

import (
	"context"
	"testing"

	authkit "github.com/goliatone/go-authkit"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuther(t *testing.T, opts ...authkit.Option) *authkit.Auther {
	t.Helper()

	auther, err := authkit.New(newTestConfig(), opts...)
	require.NoError(t, err)
	return auther
}

func TestNewValidatesConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := authkit.New(nil)
		require.Error(t, err)
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := authkit.New(&authkit.Config{
			SigningSecret: "short",
			BaseURL:       "https://app.example.com",
		})
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeConfiguration, authkit.TextCode(err))
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := authkit.New(&authkit.Config{
			SigningSecret: "0123456789abcdef0123456789abcdef",
		})
		require.Error(t, err)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		cfg := newTestConfig()
		_, err := authkit.New(cfg)
		require.NoError(t, err)

		assert.Equal(t, authkit.DefaultCookieName, cfg.CookieName)
		assert.Equal(t, authkit.DefaultSessionKey, cfg.SessionKey)
		assert.Equal(t, "/auth/signin", cfg.SignInRoute)
		assert.Equal(t, "/auth/error", cfg.ErrorRoute)
		assert.Equal(t, cfg.BaseURL, cfg.Issuer)
		assert.Equal(t, "app.example.com", cfg.CookieDomain)
	})

	t.Run("duplicate provider names", func(t *testing.T) {
		_, err := authkit.New(newTestConfig(),
			authkit.WithProvider(&fakeProvider{name: "credentials"}),
			authkit.WithProvider(&fakeProvider{name: "credentials"}),
		)
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeConfiguration, authkit.TextCode(err))
	})
}

func TestSignInPipeline(t *testing.T) {
	identity := testIdentity()

	t.Run("success emits attempted and succeeded", func(t *testing.T) {
		recorder := &eventRecorder{}
		hooks := authkit.NewHooks()
		for _, event := range []authkit.ActivityEventType{
			authkit.ActivityEventSignInAttempted,
			authkit.ActivityEventSignInSucceeded,
			authkit.ActivityEventSignInFailed,
		} {
			hooks.On(event, recorder)
		}

		auther := newTestAuther(t,
			authkit.WithProvider(&fakeProvider{name: "credentials", identity: identity}),
			authkit.WithHooks(hooks),
		)

		session, err := auther.SignIn(newTestClient(), "credentials", authkit.Credentials{})
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "user-1", session.Subject())

		assert.Len(t, recorder.ofType(authkit.ActivityEventSignInAttempted), 1)
		succeeded := recorder.ofType(authkit.ActivityEventSignInSucceeded)
		require.Len(t, succeeded, 1)
		assert.Equal(t, "user-1", succeeded[0].UserID)
		assert.Empty(t, recorder.ofType(authkit.ActivityEventSignInFailed))
	})

	t.Run("unknown provider", func(t *testing.T) {
		recorder := &eventRecorder{}
		hooks := authkit.NewHooks().On(authkit.ActivityEventSignInFailed, recorder)

		auther := newTestAuther(t, authkit.WithHooks(hooks))

		_, err := auther.SignIn(newTestClient(), "nope", authkit.Credentials{})
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeProviderNotRegistered, authkit.TextCode(err))

		failed := recorder.ofType(authkit.ActivityEventSignInFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, authkit.TextCodeProviderNotRegistered, failed[0].Metadata["code"])
	})

	t.Run("provider denial", func(t *testing.T) {
		auther := newTestAuther(t,
			authkit.WithProvider(&fakeProvider{name: "credentials"}),
		)

		_, err := auther.SignIn(newTestClient(), "credentials", authkit.Credentials{})
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeAuthorizationDenied, authkit.TextCode(err))
	})

	t.Run("gate veto fires exactly one failed event", func(t *testing.T) {
		recorder := &eventRecorder{}
		hooks := authkit.NewHooks().
			On(authkit.ActivityEventSignInFailed, recorder).
			SetSignInGate(authkit.SignInGateFunc(func(_ context.Context, id *authkit.Identity, provider string) (bool, error) {
				assert.Equal(t, "credentials", provider)
				return id.Email != "user@example.com", nil
			}))

		auther := newTestAuther(t,
			authkit.WithProvider(&fakeProvider{name: "credentials", identity: identity}),
			authkit.WithHooks(hooks),
		)

		client := newTestClient()
		_, err := auther.SignIn(client, "credentials", authkit.Credentials{})
		require.Error(t, err)
		assert.Equal(t, authkit.TextCodeCallbackRejected, authkit.TextCode(err))

		failed := recorder.ofType(authkit.ActivityEventSignInFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, "user-1", failed[0].UserID)

		// no session came into existence
		session, err := auther.GetSession(client)
		assert.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("gate error aborts", func(t *testing.T) {
		hooks := authkit.NewHooks().
			SetSignInGate(authkit.SignInGateFunc(func(context.Context, *authkit.Identity, string) (bool, error) {
				return false, errors.New("gate lookup failed", errors.CategoryInternal)
			}))

		auther := newTestAuther(t,
			authkit.WithProvider(&fakeProvider{name: "credentials", identity: identity}),
			authkit.WithHooks(hooks),
		)

		_, err := auther.SignIn(newTestClient(), "credentials", authkit.Credentials{})
		require.Error(t, err)
	})

	t.Run("provider error propagates with one failed event", func(t *testing.T) {
		recorder := &eventRecorder{}
		hooks := authkit.NewHooks().On(authkit.ActivityEventSignInFailed, recorder)

		auther := newTestAuther(t,
			authkit.WithProvider(&fakeProvider{
				name: "credentials",
				err:  errors.New("backend down", errors.CategoryInternal),
			}),
			authkit.WithHooks(hooks),
		)

		_, err := auther.SignIn(newTestClient(), "credentials", authkit.Credentials{})
		require.Error(t, err)
		assert.Len(t, recorder.ofType(authkit.ActivityEventSignInFailed), 1)
	})
}

func TestSignInClaimsDecoration(t *testing.T) {
	hooks := authkit.NewHooks().
		SetClaimsDecorator(authkit.ClaimsDecoratorFunc(func(_ context.Context, _ *authkit.Identity, _ string, claims authkit.Claims) (authkit.Claims, error) {
			claims["permissions"] = map[string]bool{"billing": true}
			claims["name"] = "Decorated Name"
			return claims, nil
		}))

	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "credentials", identity: testIdentity()}),
		authkit.WithHooks(hooks),
	)

	client := newTestClient()
	session, err := auther.SignIn(client, "credentials", authkit.Credentials{})
	require.NoError(t, err)

	// decorated fields land on the session user
	assert.True(t, session.HasPermission("billing"))
	assert.Equal(t, "Decorated Name", session.User["name"])

	// and inside the signed token
	claims, err := auther.TokenManager().Verify(session.Token)
	require.NoError(t, err)
	assert.True(t, claims.Permissions()["billing"])
	assert.Equal(t, "Decorated Name", claims["name"])
	assert.Equal(t, "user-1", claims.Subject())

	// they survive a fresh read
	reread, err := auther.GetSession(client)
	require.NoError(t, err)
	require.NotNil(t, reread)
	assert.True(t, reread.HasPermission("billing"))
}

func TestSignInSessionDecoration(t *testing.T) {
	hooks := authkit.NewHooks().
		SetSessionDecorator(authkit.SessionDecoratorFunc(func(_ context.Context, session *authkit.Session) (*authkit.Session, error) {
			session.User["tenant"] = "acme"
			return session, nil
		}))

	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "credentials", identity: testIdentity()}),
		authkit.WithHooks(hooks),
	)

	client := newTestClient()
	session, err := auther.SignIn(client, "credentials", authkit.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "acme", session.User["tenant"])

	// the decoration is applied per read, not persisted
	reread, err := auther.GetSession(client)
	require.NoError(t, err)
	assert.Equal(t, "acme", reread.User["tenant"])

	claims, err := auther.TokenManager().Verify(session.Token)
	require.NoError(t, err)
	assert.NotContains(t, claims, "tenant")
}

func TestSignOut(t *testing.T) {
	recorder := &eventRecorder{}
	hooks := authkit.NewHooks().On(authkit.ActivityEventSignedOut, recorder)

	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "credentials", identity: testIdentity()}),
		authkit.WithHooks(hooks),
	)

	client := newTestClient()
	_, err := auther.SignIn(client, "credentials", authkit.Credentials{})
	require.NoError(t, err)

	require.NoError(t, auther.SignOut(client))

	events := recorder.ofType(authkit.ActivityEventSignedOut)
	require.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0].UserID)

	session, err := auther.GetSession(client)
	assert.NoError(t, err)
	assert.Nil(t, session)

	// signing out again is fine
	require.NoError(t, auther.SignOut(client))
}

func TestBeginOAuthRequiresRedirectingProvider(t *testing.T) {
	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "credentials", identity: testIdentity()}),
	)

	_, err := auther.BeginOAuth(newTestClient(), "credentials", "/next")
	require.Error(t, err)

	_, err = auther.BeginOAuth(newTestClient(), "missing", "/next")
	require.Error(t, err)
	assert.Equal(t, authkit.TextCodeProviderNotRegistered, authkit.TextCode(err))
}

func TestCallbackRedirect(t *testing.T) {
	auther := newTestAuther(t)

	t.Run("stored target is consumed", func(t *testing.T) {
		client := newTestClient()
		require.NoError(t, client.Store().Set(context.Background(), "auth.callback-url", []byte("/dashboard"), 0))

		assert.Equal(t, "https://app.example.com/dashboard", auther.CallbackRedirect(client))

		// second call falls back to base: the target was deleted
		assert.Equal(t, "https://app.example.com", auther.CallbackRedirect(client))
	})

	t.Run("external targets are rejected", func(t *testing.T) {
		client := newTestClient()
		require.NoError(t, client.Store().Set(context.Background(), "auth.callback-url", []byte("https://evil.example.net/"), 0))

		assert.Equal(t, "https://app.example.com", auther.CallbackRedirect(client))
	})
}

func TestUpdateSessionThroughAuther(t *testing.T) {
	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "credentials", identity: testIdentity()}),
	)

	client := newTestClient()
	_, err := auther.SignIn(client, "credentials", authkit.Credentials{})
	require.NoError(t, err)

	session, err := auther.UpdateSession(client, map[string]any{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, "dark", session.User["theme"])

	_, err = auther.UpdateSession(newTestClient(), map[string]any{"theme": "dark"})
	require.Error(t, err)
	assert.Equal(t, authkit.TextCodeSessionNotFound, authkit.TextCode(err))
}

func TestProvidersListing(t *testing.T) {
	auther := newTestAuther(t,
		authkit.WithProvider(&fakeProvider{name: "zeta"}),
		authkit.WithProvider(&fakeProvider{name: "alpha"}),
	)

	infos := auther.Providers()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.Equal(t, "zeta", infos[1].ID)

	_, ok := auther.Provider("alpha")
	assert.True(t, ok)
	_, ok = auther.Provider("missing")
	assert.False(t, ok)
}

func TestErrorMessageMapping(t *testing.T) {
	auther := newTestAuther(t)

	denied := auther.ErrorMessage(authkit.TextCodeAuthorizationDenied)
	assert.NotEmpty(t, denied)

	unknown := auther.ErrorMessage("some_unknown_code")
	assert.NotEmpty(t, unknown)
	assert.NotEqual(t, denied, unknown)
}
