package authkit

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// UserRecord is whatever a credential store returns for an identifier. The
// package keeps no user database of its own.
type UserRecord struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Traits       map[string]any
}

// UserStore looks up user records by identifier. Return (nil, nil) for
// unknown identifiers; errors are for store faults only.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
}

// CredentialsProvider authenticates a local identifier/secret pair against
// a UserStore. Unknown identifier and wrong secret are indistinguishable to
// the caller: both come back as a plain denial, so response shape cannot be
// used for user enumeration.
type CredentialsProvider struct {
	name   string
	store  UserStore
	logger Logger
}

// NewCredentialsProvider creates a credentials provider. A nil store is a
// configuration error.
func NewCredentialsProvider(store UserStore, opts ...CredentialsOption) (*CredentialsProvider, error) {
	if store == nil {
		return nil, goerrors.Wrap(ErrConfiguration, goerrors.CategoryInternal,
			"credentials provider requires a user store")
	}

	p := &CredentialsProvider{
		name:   "credentials",
		store:  store,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// CredentialsOption configures a CredentialsProvider.
type CredentialsOption func(*CredentialsProvider)

// WithCredentialsName overrides the registry name, useful when an app
// registers more than one credential backend.
func WithCredentialsName(name string) CredentialsOption {
	return func(p *CredentialsProvider) {
		if name != "" {
			p.name = name
		}
	}
}

// WithCredentialsLogger overrides the logger.
func WithCredentialsLogger(logger Logger) CredentialsOption {
	return func(p *CredentialsProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Name implements Provider.
func (p *CredentialsProvider) Name() string {
	return p.name
}

// Type implements Provider.
func (p *CredentialsProvider) Type() ProviderType {
	return ProviderTypeCredentials
}

// Config implements Provider.
func (p *CredentialsProvider) Config() ProviderInfo {
	return ProviderInfo{
		ID:   p.name,
		Name: p.name,
		Type: string(ProviderTypeCredentials),
	}
}

// Authorize implements Provider. The returned Identity never carries the
// secret or its hash.
func (p *CredentialsProvider) Authorize(ctx context.Context, _ Client, creds Credentials) (*Identity, error) {
	if creds.Identifier == "" || creds.Secret == "" {
		return nil, nil
	}

	user, err := p.store.FindByIdentifier(ctx, creds.Identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user record")
	}

	if user == nil {
		return nil, nil
	}

	if err := ComparePasswordAndHash(creds.Secret, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, nil
		}
		return nil, err
	}

	traits := make(map[string]any, len(user.Traits))
	for k, v := range user.Traits {
		if k == "secret" || k == "password" || k == "password_hash" {
			continue
		}
		traits[k] = v
	}

	return &Identity{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: p.name,
		Traits:   traits,
	}, nil
}
