package authkit

import (
	"time"
)

// Reserved time claims managed by the TokenManager. Refresh strips exactly
// these before re-signing.
const (
	ClaimIssuedAt  = "iat"
	ClaimNotBefore = "nbf"
	ClaimExpiresAt = "exp"
	ClaimTokenID   = "jti"
	ClaimSubject   = "sub"
)

// Claims is a signed claim set: plain names mapped to JSON-compatible
// values. The three time claims are always present on generated tokens.
type Claims map[string]any

// Subject returns the "sub" claim or empty.
func (c Claims) Subject() string {
	return c.str(ClaimSubject)
}

// Email returns the "email" claim or empty.
func (c Claims) Email() string {
	return c.str("email")
}

// Provider returns the "provider" claim or empty.
func (c Claims) Provider() string {
	return c.str("provider")
}

// ExpiresAt returns the "exp" claim as a time, or the zero time when absent.
func (c Claims) ExpiresAt() time.Time {
	return c.numericDate(ClaimExpiresAt)
}

// IssuedAt returns the "iat" claim as a time, or the zero time when absent.
func (c Claims) IssuedAt() time.Time {
	return c.numericDate(ClaimIssuedAt)
}

// Permissions returns the "permissions" claim normalized to a name -> bool
// map. Both map[string]bool and decoded-JSON map[string]any shapes are
// accepted.
func (c Claims) Permissions() map[string]bool {
	switch perms := c["permissions"].(type) {
	case map[string]bool:
		return perms
	case map[string]any:
		out := make(map[string]bool, len(perms))
		for name, v := range perms {
			granted, ok := v.(bool)
			out[name] = ok && granted
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy so decorators can never mutate the caller's
// map in place.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other over c, other's keys winning, and
// returns c for chaining.
func (c Claims) Merge(other Claims) Claims {
	for k, v := range other {
		c[k] = v
	}
	return c
}

func (c Claims) str(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// numericDate tolerates the numeric shapes a JWT round trip produces:
// float64 out of encoding/json, int64 from fresh claims.
func (c Claims) numericDate(key string) time.Time {
	switch v := c[key].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	case int:
		return time.Unix(int64(v), 0)
	}
	return time.Time{}
}
