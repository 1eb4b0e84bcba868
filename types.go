package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// Logger is the minimal logging surface the package needs. Callers can plug
// their own implementation via the WithLogger options.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Client is the per-request capability the core operates against: a
// client-scoped session store plus cookie and header access. HTTP adapters
// (see RouterClient) implement it on top of a real request; tests can use a
// plain in-memory value.
type Client interface {
	Context() context.Context
	Store() SessionStore
	Cookie(name string) string
	SetCookie(cookie *Cookie)
	ClearCookie(name string)
	Header(name string) string
	Secure() bool
}

// Cookie is the transport-agnostic cookie shape the core writes through a
// Client. Adapters translate it to their router's native type.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// Credentials is the ephemeral input to a sign-in attempt. Either the
// identifier/secret pair (credentials providers) or the code/state pair
// (OAuth callback) is populated, never both. It is never persisted.
type Credentials struct {
	Identifier string `json:"identifier,omitempty"`
	Secret     string `json:"secret,omitempty"`
	Code       string `json:"code,omitempty"`
	State      string `json:"state,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Identity is the profile a provider produced for an authenticated subject.
// Traits carries provider-specific fields verbatim; the secret used to
// authenticate is never part of it.
type Identity struct {
	ID       string         `json:"id,omitempty"`
	Email    string         `json:"email,omitempty"`
	Name     string         `json:"name,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Traits   map[string]any `json:"traits,omitempty"`
}

// Subject derives a stable subject id: explicit id first, then the
// provider-assigned subject from traits, then a deterministic hashid from
// the email, falling back to a random UUID for fully anonymous identities.
func (i *Identity) Subject() string {
	if i.ID != "" {
		return i.ID
	}

	if i.Traits != nil {
		if sub, ok := i.Traits["sub"].(string); ok && sub != "" {
			return sub
		}
	}

	if i.Email != "" {
		if id, err := hashid.NewUUID(i.Email); err == nil {
			return id.String()
		}
	}

	return uuid.NewString()
}

// AsMap renders the identity as the user map stored inside a Session.
func (i *Identity) AsMap() map[string]any {
	user := make(map[string]any, len(i.Traits)+4)
	for k, v := range i.Traits {
		user[k] = v
	}

	user["id"] = i.Subject()
	if i.Email != "" {
		user["email"] = i.Email
	}
	if i.Name != "" {
		user["name"] = i.Name
	}
	if i.Provider != "" {
		user["provider"] = i.Provider
	}

	return user
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func newline(format string) string {
	if len(format) == 0 || format[len(format)-1] != '\n' {
		return format + "\n"
	}
	return format
}
