package authkit

import (
	"sort"

	"github.com/goliatone/go-errors"
)

// Auther composes providers, sessions, and hooks into the public sign-in
// pipeline. The provider registry is fixed at construction; nothing can be
// registered afterwards.
type Auther struct {
	providers map[string]Provider
	sessions  *SessionManager
	tokens    *TokenManager
	hooks     *Hooks
	cfg       *Config
	logger    Logger
}

// Option configures an Auther.
type Option func(*Auther) error

// WithProvider registers a provider under its name. Registering two
// providers with the same name is a configuration error.
func WithProvider(p Provider) Option {
	return func(a *Auther) error {
		if p == nil {
			return nil
		}
		if _, exists := a.providers[p.Name()]; exists {
			return errors.Wrap(ErrConfiguration, errors.CategoryInternal,
				"duplicate provider: "+p.Name())
		}
		a.providers[p.Name()] = p
		return nil
	}
}

// WithHooks replaces the hook registry.
func WithHooks(hooks *Hooks) Option {
	return func(a *Auther) error {
		if hooks != nil {
			a.hooks = hooks
		}
		return nil
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(a *Auther) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// New builds an Auther from a validated configuration. Configuration
// failures are fatal here, never later.
func New(cfg *Config, opts ...Option) (*Auther, error) {
	if cfg == nil {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal, "config is required")
	}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := NewTokenManager([]byte(cfg.SigningSecret),
		WithTokenTTL(cfg.SessionMaxAge),
		WithTokenIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := NewSessionManager(tokens, cfg)
	if err != nil {
		return nil, err
	}

	a := &Auther{
		providers: make(map[string]Provider),
		sessions:  sessions,
		tokens:    tokens,
		hooks:     NewHooks(),
		cfg:       cfg,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	a.sessions.WithLogger(a.logger)

	return a, nil
}

// Sessions exposes the session manager, for middleware construction.
func (a *Auther) Sessions() *SessionManager {
	return a.sessions
}

// TokenManager exposes the token manager.
func (a *Auther) TokenManager() *TokenManager {
	return a.tokens
}

// Hooks exposes the hook registry.
func (a *Auther) Hooks() *Hooks {
	return a.hooks
}

// Config exposes the active configuration.
func (a *Auther) Config() *Config {
	return a.cfg
}

// Provider resolves a registered provider by name.
func (a *Auther) Provider(name string) (Provider, bool) {
	p, ok := a.providers[name]
	return p, ok
}

// Providers lists registered providers in name order.
func (a *Auther) Providers() []ProviderInfo {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		out = append(out, a.providers[name].Config())
	}
	return out
}

// SignIn runs the full pipeline: attempted event, provider authorize,
// sign-in gate, claim transform, session create, session transform,
// succeeded event. Every failure inside the pipeline fires exactly one
// sign-in-failed event before propagating.
func (a *Auther) SignIn(client Client, providerName string, creds Credentials) (session *Session, err error) {
	ctx := client.Context()

	a.hooks.Emit(ctx, ActivityEvent{
		EventType: ActivityEventSignInAttempted,
		Provider:  providerName,
	})

	var identity *Identity

	defer func() {
		if err == nil {
			return
		}
		meta := map[string]any{"error": err.Error(), "code": TextCode(err)}
		event := ActivityEvent{
			EventType: ActivityEventSignInFailed,
			Provider:  providerName,
			Metadata:  meta,
		}
		if identity != nil {
			event.UserID = identity.Subject()
		}
		a.hooks.Emit(ctx, event)
	}()

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, errors.Wrap(ErrProviderNotRegistered, errors.CategoryNotFound,
			"provider not registered: "+providerName).
			WithTextCode(ErrProviderNotRegistered.TextCode)
	}

	identity, err = provider.Authorize(ctx, client, creds)
	if err != nil {
		a.logger.Error("provider authorize error", "provider", providerName, "error", err)
		return nil, err
	}
	if identity == nil {
		return nil, ErrAuthorizationDenied
	}

	allowed, err := a.hooks.gate.Allow(ctx, identity, providerName)
	if err != nil {
		a.logger.Error("sign-in gate error", "provider", providerName, "error", err)
		return nil, err
	}
	if !allowed {
		return nil, ErrCallbackRejected
	}

	baseClaims := Claims{
		ClaimSubject: identity.Subject(),
		"provider":   providerName,
	}
	if identity.Email != "" {
		baseClaims["email"] = identity.Email
	}
	if identity.Name != "" {
		baseClaims["name"] = identity.Name
	}

	decorated, err := a.hooks.claimsDecorator.Decorate(ctx, identity, providerName, baseClaims.Clone())
	if err != nil {
		a.logger.Error("claims decorator error", "provider", providerName, "error", err)
		return nil, err
	}

	extra := Claims{}
	for k, v := range decorated {
		if base, ok := baseClaims[k]; !ok || base != v {
			extra[k] = v
		}
	}

	session, err = a.sessions.Create(client, identity, extra)
	if err != nil {
		a.logger.Error("session create error", "provider", providerName, "error", err)
		return nil, err
	}

	session, err = a.hooks.sessionDecorator.Decorate(ctx, session.Clone())
	if err != nil {
		a.logger.Error("session decorator error", "provider", providerName, "error", err)
		return nil, err
	}

	a.hooks.Emit(ctx, ActivityEvent{
		EventType: ActivityEventSignInSucceeded,
		Provider:  providerName,
		UserID:    identity.Subject(),
	})

	return session, nil
}

// BeginOAuth starts the redirect leg for a redirect-based provider,
// sanitizing the eventual redirect target up front.
func (a *Auther) BeginOAuth(client Client, providerName, redirectTo string) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, errors.Wrap(ErrProviderNotRegistered, errors.CategoryNotFound,
			"provider not registered: "+providerName).
			WithTextCode(ErrProviderNotRegistered.TextCode)
	}

	redirecting, ok := provider.(RedirectingProvider)
	if !ok {
		return nil, errors.New("provider does not support redirect flows", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	target := a.hooks.redirectPolicy.Sanitize(redirectTo, a.cfg.BaseURL)
	return redirecting.BeginAuth(client.Context(), client, target)
}

// SignOut fires the signed-out event and destroys the session. Signing out
// with no active session is not an error.
func (a *Auther) SignOut(client Client) error {
	ctx := client.Context()

	event := ActivityEvent{EventType: ActivityEventSignedOut}
	if session, err := a.sessions.Get(client); err == nil && session != nil {
		event.UserID = session.Subject()
	}
	a.hooks.Emit(ctx, event)

	return a.sessions.Destroy(client)
}

// GetSession reads the current session and applies the session transform.
// Returns (nil, nil) when not authenticated.
func (a *Auther) GetSession(client Client) (*Session, error) {
	session, err := a.sessions.Get(client)
	if err != nil || session == nil {
		return nil, err
	}
	return a.hooks.sessionDecorator.Decorate(client.Context(), session.Clone())
}

// UpdateSession merges partial user fields into the active session,
// re-signing its token, then applies the session transform.
func (a *Auther) UpdateSession(client Client, partial map[string]any) (*Session, error) {
	session, err := a.sessions.Update(client, partial)
	if err != nil {
		return nil, err
	}
	return a.hooks.sessionDecorator.Decorate(client.Context(), session.Clone())
}

// CallbackRedirect resolves where a completed browser flow should land:
// the stored callback URL if one survived, sanitized, else the base URL.
func (a *Auther) CallbackRedirect(client Client) string {
	target := ""
	if raw, err := client.Store().Get(client.Context(), callbackURLKey); err == nil && raw != nil {
		target = string(raw)
		_ = client.Store().Delete(client.Context(), callbackURLKey)
	}
	return a.hooks.redirectPolicy.Sanitize(target, a.cfg.BaseURL)
}

// ErrorMessage maps a stable error code to a human message via the
// error-mapper hook.
func (a *Auther) ErrorMessage(code string) string {
	return a.hooks.errorMapper.Message(code)
}
