package authkit

import (
	"context"
	"strings"
	"time"
)

// SignInGate can veto a sign-in after the provider authenticated the
// identity but before any session exists. Returning false aborts the
// attempt with ErrCallbackRejected.
type SignInGate interface {
	Allow(ctx context.Context, identity *Identity, provider string) (bool, error)
}

// SignInGateFunc adapts a function into a SignInGate.
type SignInGateFunc func(ctx context.Context, identity *Identity, provider string) (bool, error)

// Allow satisfies the SignInGate interface.
func (f SignInGateFunc) Allow(ctx context.Context, identity *Identity, provider string) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f(ctx, identity, provider)
}

type allowAllGate struct{}

func (allowAllGate) Allow(context.Context, *Identity, string) (bool, error) {
	return true, nil
}

// ClaimsDecorator enriches the claim set signed into the session token.
// Canonical signature: identity and provider first, the base claims last;
// the returned map is merged over the base, decorated keys winning.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, identity *Identity, provider string, claims Claims) (Claims, error)
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, identity *Identity, provider string, claims Claims) (Claims, error)

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, identity *Identity, provider string, claims Claims) (Claims, error) {
	if f == nil {
		return claims, nil
	}
	return f(ctx, identity, provider, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(_ context.Context, _ *Identity, _ string, claims Claims) (Claims, error) {
	return claims, nil
}

// SessionDecorator shapes the outward-facing session after creation and on
// every read. It may add or override user fields (injected permissions are
// the typical case) but never touches the stored record.
type SessionDecorator interface {
	Decorate(ctx context.Context, session *Session) (*Session, error)
}

// SessionDecoratorFunc adapts a function into a SessionDecorator.
type SessionDecoratorFunc func(ctx context.Context, session *Session) (*Session, error)

// Decorate satisfies the SessionDecorator interface.
func (f SessionDecoratorFunc) Decorate(ctx context.Context, session *Session) (*Session, error) {
	if f == nil {
		return session, nil
	}
	return f(ctx, session)
}

type noopSessionDecorator struct{}

func (noopSessionDecorator) Decorate(_ context.Context, session *Session) (*Session, error) {
	return session, nil
}

// RedirectPolicy sanitizes a post-login redirect target. Implementations
// must never return a URL outside the application base URL.
type RedirectPolicy interface {
	Sanitize(target, baseURL string) string
}

// RedirectPolicyFunc adapts a function into a RedirectPolicy.
type RedirectPolicyFunc func(target, baseURL string) string

// Sanitize satisfies the RedirectPolicy interface.
func (f RedirectPolicyFunc) Sanitize(target, baseURL string) string {
	if f == nil {
		return defaultRedirectPolicy{}.Sanitize(target, baseURL)
	}
	return f(target, baseURL)
}

// defaultRedirectPolicy allows same-origin absolute URLs and local paths,
// falling back to the base URL for everything else.
type defaultRedirectPolicy struct{}

func (defaultRedirectPolicy) Sanitize(target, baseURL string) string {
	if target == "" {
		return baseURL
	}

	base := strings.TrimSuffix(baseURL, "/")

	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return base + target
	}

	// The origin boundary must be a path separator, otherwise a host that
	// merely extends the base (app.example.com.evil.net) would pass.
	if target == base || strings.HasPrefix(target, base+"/") {
		return target
	}

	return baseURL
}

// ErrorMapper translates a stable error text code into a human message.
type ErrorMapper interface {
	Message(code string) string
}

// ErrorMapperFunc adapts a function into an ErrorMapper.
type ErrorMapperFunc func(code string) string

// Message satisfies the ErrorMapper interface.
func (f ErrorMapperFunc) Message(code string) string {
	if f == nil {
		return defaultErrorMapper{}.Message(code)
	}
	return f(code)
}

type defaultErrorMapper struct{}

func (defaultErrorMapper) Message(code string) string {
	switch code {
	case TextCodeProviderNotRegistered:
		return "The sign-in method is not available."
	case TextCodeAuthorizationDenied:
		return "We could not sign you in with those credentials."
	case TextCodeCSRFMismatch:
		return "The sign-in request could not be verified. Please try again."
	case TextCodeCallbackRejected:
		return "Your account is not allowed to sign in."
	case TextCodeTokenExchangeFail, TextCodeProfileFetchFail:
		return "The identity provider did not respond correctly. Please try again."
	case TextCodeTokenInvalid, TextCodeTokenExpired:
		return "Your session is no longer valid. Please sign in again."
	default:
		return "Something went wrong while signing you in."
	}
}

// ActivityEventType enumerates the notification events the pipeline emits.
type ActivityEventType string

const (
	ActivityEventSignInAttempted ActivityEventType = "auth.signin.attempted"
	ActivityEventSignInSucceeded ActivityEventType = "auth.signin.succeeded"
	ActivityEventSignInFailed    ActivityEventType = "auth.signin.failed"
	ActivityEventSignedOut       ActivityEventType = "auth.signout"
)

// ActivityEvent captures audit-friendly information about a pipeline stage.
type ActivityEvent struct {
	EventType  ActivityEventType
	Provider   string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events. Sinks run best-effort: a failing
// sink is logged and never aborts the caller.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Hooks is the registry of pipeline hooks: one optional handler per typed
// slot, each with a no-op default, plus an ordered sink list per event.
type Hooks struct {
	gate             SignInGate
	claimsDecorator  ClaimsDecorator
	sessionDecorator SessionDecorator
	redirectPolicy   RedirectPolicy
	errorMapper      ErrorMapper
	sinks            map[ActivityEventType][]ActivitySink
	logger           Logger
}

// NewHooks creates a registry with every slot on its default.
func NewHooks() *Hooks {
	return &Hooks{
		gate:             allowAllGate{},
		claimsDecorator:  noopClaimsDecorator{},
		sessionDecorator: noopSessionDecorator{},
		redirectPolicy:   defaultRedirectPolicy{},
		errorMapper:      defaultErrorMapper{},
		sinks:            make(map[ActivityEventType][]ActivitySink),
		logger:           defLogger{},
	}
}

// SetSignInGate installs the sign-in gate.
func (h *Hooks) SetSignInGate(gate SignInGate) *Hooks {
	if gate != nil {
		h.gate = gate
	}
	return h
}

// SetClaimsDecorator installs the claim-transform hook.
func (h *Hooks) SetClaimsDecorator(d ClaimsDecorator) *Hooks {
	if d != nil {
		h.claimsDecorator = d
	}
	return h
}

// SetSessionDecorator installs the session-transform hook.
func (h *Hooks) SetSessionDecorator(d SessionDecorator) *Hooks {
	if d != nil {
		h.sessionDecorator = d
	}
	return h
}

// SetRedirectPolicy installs the redirect policy.
func (h *Hooks) SetRedirectPolicy(p RedirectPolicy) *Hooks {
	if p != nil {
		h.redirectPolicy = p
	}
	return h
}

// SetErrorMapper installs the error message mapper.
func (h *Hooks) SetErrorMapper(m ErrorMapper) *Hooks {
	if m != nil {
		h.errorMapper = m
	}
	return h
}

// On appends a sink for the named event. Sinks fire in registration order.
func (h *Hooks) On(event ActivityEventType, sink ActivitySink) *Hooks {
	if sink != nil {
		h.sinks[event] = append(h.sinks[event], sink)
	}
	return h
}

// WithLogger overrides the logger used to report sink failures.
func (h *Hooks) WithLogger(logger Logger) *Hooks {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Emit fans the event out to its sinks. Failures are logged and isolated:
// one broken sink never stops the rest, and never the caller.
func (h *Hooks) Emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	for _, sink := range h.sinks[event.EventType] {
		if err := sink.Record(ctx, event); err != nil {
			h.logger.Warn("activity sink record error", "event", event.EventType, "error", err)
		}
	}
}
