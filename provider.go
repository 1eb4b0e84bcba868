package authkit

import (
	"context"
)

// ProviderType distinguishes the two provider families.
type ProviderType string

const (
	// ProviderTypeOAuth marks external authorization-code providers.
	ProviderTypeOAuth ProviderType = "oauth"

	// ProviderTypeCredentials marks local identifier/secret providers.
	ProviderTypeCredentials ProviderType = "credentials"
)

// ProviderInfo is the public description of a registered provider, served
// by the providers endpoint.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Provider authenticates credentials into an Identity.
//
// Authorize returns (nil, nil) when the credentials could not be
// authenticated; errors are reserved for configuration and transport
// faults that are not the caller's doing. Malformed input is a denial,
// never a panic.
type Provider interface {
	Name() string
	Type() ProviderType
	Config() ProviderInfo
	Authorize(ctx context.Context, client Client, creds Credentials) (*Identity, error)
}

// RedirectingProvider is implemented by providers whose flow starts with a
// redirect to an external party and finishes on a dedicated callback.
type RedirectingProvider interface {
	Provider

	// BeginAuth builds the external authorization URL, persisting the
	// anti-forgery state in the client store.
	BeginAuth(ctx context.Context, client Client, redirectTo string) (*AuthRedirect, error)

	// HandleCallback completes the flow with the code/state pair the
	// external party sent back.
	HandleCallback(ctx context.Context, client Client, code, state string) (*Identity, error)
}

// AuthRedirect is the outcome of starting a redirect-based flow.
type AuthRedirect struct {
	URL      string `json:"url"`
	State    string `json:"state"`
	Provider string `json:"provider"`
}
