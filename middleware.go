package authkit

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

// redirectCookieName stores the originally requested URL while a browser
// user signs in.
const redirectCookieName = "auth.redirect-url"

// Mode selects how the access middleware answers unauthenticated or
// unauthorized requests.
type Mode string

const (
	// ModeAPI answers with JSON bodies and 401/403 statuses.
	ModeAPI Mode = "api"

	// ModeBrowser persists the requested URL and redirects to the
	// sign-in (or forbidden) page.
	ModeBrowser Mode = "browser"
)

// AccessMiddleware gates routes on session state and permissions. Its only
// dependency on the rest of the package is the session manager.
type AccessMiddleware struct {
	sessions *SessionManager
	clients  *RouterClients
	cfg      *Config
	mode     Mode
	logger   Logger
}

// MiddlewareOption configures an AccessMiddleware.
type MiddlewareOption func(*AccessMiddleware)

// WithMode selects API or browser behavior. Default is ModeAPI.
func WithMode(mode Mode) MiddlewareOption {
	return func(m *AccessMiddleware) {
		if mode == ModeAPI || mode == ModeBrowser {
			m.mode = mode
		}
	}
}

// WithMiddlewareLogger overrides the logger.
func WithMiddlewareLogger(logger Logger) MiddlewareOption {
	return func(m *AccessMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewAccessMiddleware creates the middleware over a session manager and
// the shared client factory.
func NewAccessMiddleware(sessions *SessionManager, clients *RouterClients, cfg *Config, opts ...MiddlewareOption) *AccessMiddleware {
	m := &AccessMiddleware{
		sessions: sessions,
		clients:  clients,
		cfg:      cfg,
		mode:     ModeAPI,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Check reports whether the client has a valid session.
func (m *AccessMiddleware) Check(client Client) bool {
	return m.sessions.IsActive(client)
}

// Require gates a route on authentication.
func (m *AccessMiddleware) Require() router.MiddlewareFunc {
	return m.guard(func(*Session) bool { return true })
}

// RequireWithPermission gates on a single named permission.
func (m *AccessMiddleware) RequireWithPermission(name string) router.MiddlewareFunc {
	return m.guard(func(s *Session) bool { return s.HasPermission(name) })
}

// RequireWithAnyPermission gates on at least one of the named permissions,
// short-circuiting on the first match.
func (m *AccessMiddleware) RequireWithAnyPermission(names ...string) router.MiddlewareFunc {
	return m.guard(func(s *Session) bool { return HasAnyPermission(s, names...) })
}

// RequireWithAllPermissions gates on every named permission, failing on
// the first miss.
func (m *AccessMiddleware) RequireWithAllPermissions(names ...string) router.MiddlewareFunc {
	return m.guard(func(s *Session) bool { return HasAllPermissions(s, names...) })
}

// HasAnyPermission reports whether the session holds at least one of the
// named permissions.
func HasAnyPermission(s *Session, names ...string) bool {
	for _, name := range names {
		if s.HasPermission(name) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the session holds every named
// permission. An empty list passes.
func HasAllPermissions(s *Session, names ...string) bool {
	for _, name := range names {
		if !s.HasPermission(name) {
			return false
		}
	}
	return true
}

func (m *AccessMiddleware) guard(allowed func(*Session) bool) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			client := m.clients.FromContext(ctx)

			session, err := m.sessions.Get(client)
			if err != nil {
				m.logger.Error("session read error in middleware", "error", err)
				return m.unauthenticated(ctx)
			}
			if session == nil {
				return m.unauthenticated(ctx)
			}

			if !allowed(session) {
				return m.forbidden(ctx)
			}

			ctx.SetContext(WithSessionContext(ctx.Context(), session))
			return next(ctx)
		}
	}
}

func (m *AccessMiddleware) unauthenticated(ctx router.Context) error {
	if m.mode == ModeBrowser {
		m.setRedirect(ctx)
		return ctx.Redirect(m.cfg.SignInRoute, http.StatusSeeOther)
	}

	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"status":  "error",
		"code":    http.StatusUnauthorized,
		"message": "authentication required",
	})
}

func (m *AccessMiddleware) forbidden(ctx router.Context) error {
	if m.mode == ModeBrowser {
		return ctx.Redirect(m.cfg.ForbiddenRoute, http.StatusSeeOther)
	}

	return ctx.JSON(router.StatusForbidden, map[string]any{
		"status":  "error",
		"code":    http.StatusForbidden,
		"message": "insufficient permissions",
	})
}

// setRedirect remembers where the user was heading so the sign-in flow can
// send them back.
func (m *AccessMiddleware) setRedirect(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     redirectCookieName,
		Value:    ctx.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		Secure:   m.clients.secure,
		SameSite: "Lax",
	})
}
