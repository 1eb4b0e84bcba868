package authkit_test

import (
	"strings"
	"testing"
	"time"

	authkit "github.com/goliatone/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	_, err := authkit.NewTokenManager([]byte("too-short"))
	require.Error(t, err)
	assert.Equal(t, authkit.TextCodeConfiguration, authkit.TextCode(err))
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager(authkit.WithTokenIssuer("https://app.example.com"))

	token, err := tm.Generate(authkit.Claims{
		"sub":   "user-1",
		"email": "user@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject())
	assert.Equal(t, "user@example.com", claims.Email())
	assert.Equal(t, "https://app.example.com", claims["iss"])

	assert.False(t, claims.IssuedAt().IsZero())
	assert.False(t, claims.ExpiresAt().IsZero())
	assert.NotEmpty(t, claims[authkit.ClaimTokenID])
}

func TestTokenVerifyRejectsTampering(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.Generate(authkit.Claims{"sub": "user-1"})
	require.NoError(t, err)

	t.Run("altered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)

		tampered := parts[0] + "." + parts[1] + "x." + parts[2]
		_, err := tm.Verify(tampered)
		require.Error(t, err)
		assert.True(t, authkit.IsTokenError(err))
		assert.Equal(t, authkit.TextCodeTokenInvalid, authkit.TextCode(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := authkit.NewTokenManager([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		_, err = other.Verify(token)
		require.Error(t, err)
		assert.True(t, authkit.IsTokenError(err))
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := tm.Verify("not.a.token")
		require.Error(t, err)
		assert.True(t, authkit.IsTokenError(err))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := tm.Verify("")
		require.Error(t, err)
		assert.True(t, authkit.IsTokenError(err))
	})
}

func TestTokenVerifyExpired(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.Generate(authkit.Claims{"sub": "user-1"}, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = tm.Verify(token)
	require.Error(t, err)
	assert.True(t, authkit.IsTokenError(err))
	assert.Equal(t, authkit.TextCodeTokenExpired, authkit.TextCode(err))
}

func TestTokenGenerateOverwritesTimeClaims(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.Generate(authkit.Claims{
		"sub": "user-1",
		"exp": 1,
		"iat": 1,
	})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)

	assert.True(t, claims.ExpiresAt().After(time.Now()))
	assert.True(t, time.Since(claims.IssuedAt()) < time.Minute)
}

func TestTokenRefreshPreservesCustomClaims(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.Generate(authkit.Claims{
		"sub":         "user-1",
		"provider":    "credentials",
		"permissions": map[string]bool{"billing": true},
	})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)

	refreshed, err := tm.Refresh(claims)
	require.NoError(t, err)
	assert.NotEqual(t, token, refreshed)

	next, err := tm.Verify(refreshed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", next.Subject())
	assert.Equal(t, "credentials", next.Provider())
	assert.True(t, next.Permissions()["billing"])
	assert.NotEqual(t, claims[authkit.ClaimTokenID], next[authkit.ClaimTokenID])
}
