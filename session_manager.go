package authkit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// SessionManager owns the session lifecycle: it binds a server-side record,
// a signed token, and a cookie together, and is the only writer of all
// three. Concurrent requests for the same client interleave last-write-wins;
// there is no cross-request lock.
type SessionManager struct {
	tokens *TokenManager
	cfg    *Config
	logger Logger
}

// NewSessionManager creates a SessionManager on top of a TokenManager.
func NewSessionManager(tokens *TokenManager, cfg *Config) (*SessionManager, error) {
	if tokens == nil {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal,
			"session manager requires a token manager")
	}
	if cfg == nil {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal,
			"session manager requires a config")
	}

	return &SessionManager{
		tokens: tokens,
		cfg:    cfg,
		logger: defLogger{},
	}, nil
}

// WithLogger overrides the logger.
func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Create signs a token for the identity (merged with extra claims, extra
// winning on overlap), stores the record, and writes the session cookie.
func (m *SessionManager) Create(client Client, identity *Identity, extra Claims) (*Session, error) {
	user := identity.AsMap()

	claims := Claims{
		ClaimSubject: identity.Subject(),
		"provider":   identity.Provider,
	}
	if identity.Email != "" {
		claims["email"] = identity.Email
	}
	if identity.Name != "" {
		claims["name"] = identity.Name
	}
	claims.Merge(extra)

	token, err := m.tokens.Generate(claims, m.cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}

	// decorated claims ride along on the session user so permission
	// checks see them without re-parsing the token
	for k, v := range extra {
		user[k] = v
	}

	now := time.Now()
	session := &Session{
		User:      user,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.SessionMaxAge),
	}

	if err := m.persist(client, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Get reads the current session. A missing record falls back to deriving a
// stateless session from a verified bearer/cookie token. A record whose
// token fails verification, or whose expiry has passed, is destroyed and
// reported as no session. Returns (nil, nil) when not authenticated.
func (m *SessionManager) Get(client Client) (*Session, error) {
	raw, err := client.Store().Get(client.Context(), m.cfg.SessionKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read session record")
	}

	if raw == nil {
		return m.fromToken(client)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		m.logger.Warn("session record corrupt, destroying", "error", err)
		return nil, m.Destroy(client)
	}

	if _, err := m.tokens.Verify(session.Token); err != nil {
		if IsTokenError(err) {
			m.logger.Debug("session token no longer verifies, destroying session")
			return nil, m.Destroy(client)
		}
		return nil, err
	}

	if session.Expired() {
		return nil, m.Destroy(client)
	}

	if refreshed, err := m.maybeRefresh(client, &session); err != nil {
		m.logger.Warn("session refresh failed", "error", err)
	} else if refreshed != nil {
		return refreshed, nil
	}

	return &session, nil
}

// maybeRefresh rolls the token and expiry forward when the session has
// gone longer than SessionUpdateAge without a write. Returns nil when no
// refresh was due.
func (m *SessionManager) maybeRefresh(client Client, session *Session) (*Session, error) {
	if m.cfg.SessionUpdateAge <= 0 {
		return nil, nil
	}

	last := session.UpdatedAt
	if last.IsZero() {
		last = session.CreatedAt
	}
	if time.Since(last) < m.cfg.SessionUpdateAge {
		return nil, nil
	}

	claims, err := m.tokens.Verify(session.Token)
	if err != nil {
		return nil, err
	}

	token, err := m.tokens.Refresh(claims, m.cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Token = token
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.cfg.SessionMaxAge)

	if err := m.persist(client, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Update merges partial into the current user map, re-signs a fresh token,
// and rewrites record and cookie. Calling it with no active session is
// ErrSessionNotFound.
func (m *SessionManager) Update(client Client, partial map[string]any) (*Session, error) {
	session, err := m.Get(client)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	for k, v := range partial {
		session.User[k] = v
	}

	claims, err := m.tokens.Verify(session.Token)
	if err != nil {
		return nil, err
	}
	for k, v := range partial {
		claims[k] = v
	}

	token, err := m.tokens.Refresh(claims, m.cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Token = token
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.cfg.SessionMaxAge)

	if err := m.persist(client, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Destroy deletes the record, clears every auth cookie, and empties the
// client store. Destroying an absent session is a no-op, so reads racing a
// destroy stay idempotent.
func (m *SessionManager) Destroy(client Client) error {
	ctx := client.Context()

	if err := client.Store().Delete(ctx, m.cfg.SessionKey); err != nil {
		m.logger.Warn("failed to delete session record", "error", err)
	}

	client.ClearCookie(m.cfg.CookieName)
	client.ClearCookie(redirectCookieName)

	if err := client.Store().Clear(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear client store")
	}
	return nil
}

// IsActive reports whether the client currently has a valid session.
func (m *SessionManager) IsActive(client Client) bool {
	session, err := m.Get(client)
	return err == nil && session != nil
}

// GetUser returns the current session user map, or nil.
func (m *SessionManager) GetUser(client Client) map[string]any {
	session, err := m.Get(client)
	if err != nil || session == nil {
		return nil
	}
	return session.User
}

// GetToken returns the current signed token, or empty.
func (m *SessionManager) GetToken(client Client) string {
	session, err := m.Get(client)
	if err != nil || session == nil {
		return ""
	}
	return session.Token
}

// TokenFromClient extracts the bearer token: the session cookie first, then
// the Authorization header.
func (m *SessionManager) TokenFromClient(client Client) string {
	if token := client.Cookie(m.cfg.CookieName); token != "" {
		return token
	}

	header := client.Header("Authorization")
	const scheme = "Bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}

// fromToken re-derives a session purely from a verified token, the
// stateless path API clients use when no server-side record exists.
func (m *SessionManager) fromToken(client Client) (*Session, error) {
	raw := m.TokenFromClient(client)
	if raw == "" {
		return nil, nil
	}

	claims, err := m.tokens.Verify(raw)
	if err != nil {
		if IsTokenError(err) {
			return nil, nil
		}
		return nil, err
	}

	user := make(map[string]any, len(claims))
	for k, v := range claims {
		switch k {
		case ClaimIssuedAt, ClaimNotBefore, ClaimExpiresAt, ClaimTokenID, "iss":
			continue
		}
		user[k] = v
	}
	if sub := claims.Subject(); sub != "" {
		user["id"] = sub
	}

	return &Session{
		User:      user,
		Token:     raw,
		CreatedAt: claims.IssuedAt(),
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

// persist writes the record server-side and mirrors the token as a cookie.
func (m *SessionManager) persist(client Client, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session record")
	}

	ttl := time.Until(session.ExpiresAt)
	if err := client.Store().Set(client.Context(), m.cfg.SessionKey, raw, ttl); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store session record")
	}

	client.SetCookie(&Cookie{
		Name:     m.cfg.CookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		Expires:  session.ExpiresAt,
		Secure:   client.Secure(),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return nil
}
