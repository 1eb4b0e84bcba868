package authkit

import (
	"time"
)

// Session is the server-tracked proof of authentication for one client.
// The store holds the full record; the cookie carries only Token. A session
// is valid only while the record is unexpired AND the embedded token still
// verifies; either failing destroys it.
type Session struct {
	User      map[string]any `json:"user"`
	Token     string         `json:"token"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Subject returns the stable subject id of the session user.
func (s *Session) Subject() string {
	if s == nil || s.User == nil {
		return ""
	}
	if id, ok := s.User["id"].(string); ok {
		return id
	}
	return ""
}

// Expired reports whether the record itself has aged out, independent of
// the embedded token.
func (s *Session) Expired() bool {
	return s != nil && !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Permissions reads the user permissions map, normalized to name -> bool.
func (s *Session) Permissions() map[string]bool {
	if s == nil || s.User == nil {
		return nil
	}
	return Claims(s.User).Permissions()
}

// HasPermission reports whether the named permission is granted.
func (s *Session) HasPermission(name string) bool {
	perms := s.Permissions()
	return perms != nil && perms[name]
}

// Clone returns a copy with its own user map, so decorators can add or
// override fields without touching the stored record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	out := *s
	out.User = make(map[string]any, len(s.User))
	for k, v := range s.User {
		out.User[k] = v
	}
	return &out
}
