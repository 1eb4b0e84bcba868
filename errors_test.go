package authkit_test

import (
	"errors"
	"testing"

	authkit "github.com/goliatone/go-authkit"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestTextCode(t *testing.T) {
	assert.Equal(t, authkit.TextCodeAuthorizationDenied, authkit.TextCode(authkit.ErrAuthorizationDenied))
	assert.Equal(t, authkit.TextCodeCSRFMismatch, authkit.TextCode(authkit.ErrCSRFMismatch))

	wrapped := goerrors.Wrap(authkit.ErrSessionNotFound, goerrors.CategoryNotFound, "reading session")
	assert.Equal(t, authkit.TextCodeSessionNotFound, authkit.TextCode(wrapped))

	assert.Equal(t, "unknown", authkit.TextCode(assert.AnError))
	assert.Equal(t, "unknown", authkit.TextCode(nil))
}

func TestIsTokenError(t *testing.T) {
	assert.True(t, authkit.IsTokenError(authkit.ErrTokenInvalid))
	assert.True(t, authkit.IsTokenError(authkit.ErrTokenExpired))
	assert.False(t, authkit.IsTokenError(authkit.ErrAuthorizationDenied))
	assert.False(t, authkit.IsTokenError(assert.AnError))
	assert.False(t, authkit.IsTokenError(nil))
}

func TestSentinelCategories(t *testing.T) {
	var rich *goerrors.Error

	assert.True(t, errors.As(authkit.ErrAuthorizationDenied, &rich))
	assert.Equal(t, goerrors.CategoryAuth, rich.Category)

	assert.True(t, errors.As(authkit.ErrProviderNotRegistered, &rich))
	assert.Equal(t, goerrors.CategoryNotFound, rich.Category)

	assert.True(t, errors.As(authkit.ErrConfiguration, &rich))
	assert.Equal(t, goerrors.CategoryInternal, rich.Category)
}
