package authkit

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfiguration         = "auth_configuration"
	TextCodeProviderNotRegistered = "auth_provider_not_registered"
	TextCodeAuthorizationDenied   = "auth_authorization_denied"
	TextCodeCSRFMismatch          = "auth_csrf_mismatch"
	TextCodeCallbackRejected      = "auth_callback_rejected"
	TextCodeTokenExchangeFail     = "auth_token_exchange_failed"
	TextCodeProfileFetchFail      = "auth_profile_fetch_failed"
	TextCodeTokenInvalid          = "auth_token_invalid"
	TextCodeTokenExpired          = "auth_token_expired"
	TextCodeSessionNotFound       = "auth_session_not_found"
)

// ErrConfiguration signals an invalid construction-time setup (short signing
// secret, missing provider credentials). It is fatal and never recovered.
var ErrConfiguration = goerrors.New("invalid auth configuration", goerrors.CategoryInternal).
	WithTextCode(TextCodeConfiguration).
	WithCode(goerrors.CodeInternal)

// ErrProviderNotRegistered is returned when sign-in names an unknown provider.
var ErrProviderNotRegistered = goerrors.New("provider not registered", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotRegistered).
	WithCode(goerrors.CodeNotFound)

// ErrAuthorizationDenied is returned when a provider could not authenticate
// the supplied credentials. It carries no detail on purpose.
var ErrAuthorizationDenied = goerrors.New("authorization denied", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthorizationDenied).
	WithCode(goerrors.CodeUnauthorized)

// ErrCSRFMismatch is returned when the anti-forgery state presented at
// callback time does not match the stored value.
var ErrCSRFMismatch = goerrors.New("oauth state mismatch", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCSRFMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrCallbackRejected is returned when the sign-in gate vetoed the attempt.
var ErrCallbackRejected = goerrors.New("sign in rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeCallbackRejected).
	WithCode(goerrors.CodeForbidden)

// ErrTokenExchangeFailed is returned when the authorization-code exchange
// with the identity provider fails or times out.
var ErrTokenExchangeFailed = goerrors.New("token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileFetchFailed is returned when the profile endpoint call fails or
// returns an error-shaped payload.
var ErrProfileFetchFailed = goerrors.New("profile fetch failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeProfileFetchFail).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned by TokenManager.Verify for any signature or
// structure failure. Session reads recover from it locally.
var ErrTokenInvalid = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is the expiry flavor of ErrTokenInvalid.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionNotFound is returned by UpdateSession when no session is active.
var ErrSessionNotFound = goerrors.New("no active session", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// IsTokenError reports whether err is a token verification failure, expired
// or otherwise. Wrapped verify errors keep their text code, so check both.
func IsTokenError(err error) bool {
	switch TextCode(err) {
	case TextCodeTokenInvalid, TextCodeTokenExpired:
		return true
	}
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired)
}

// TextCode extracts the stable text code of an auth error, or "unknown" for
// foreign errors. Wrapping does not always carry the code along, so walk
// the chain until one shows up. The HTTP layer uses it for the error query
// parameter.
func TextCode(err error) string {
	for err != nil {
		var richErr *goerrors.Error
		if !errors.As(err, &richErr) {
			break
		}
		if richErr.TextCode != "" {
			return richErr.TextCode
		}
		err = richErr.Unwrap()
	}
	return "unknown"
}
