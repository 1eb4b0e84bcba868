package authkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum accepted signing secret size in bytes.
const MinSecretLength = 32

// DefaultTokenTTL is the policy TTL applied when Generate is called without
// an explicit one.
const DefaultTokenTTL = 30 * 24 * time.Hour

// TokenManager issues and verifies HMAC-SHA256 signed claim sets. It owns
// the signing secret and the expiration policy; everything else in the
// package treats tokens as opaque strings.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	logger Logger
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithTokenTTL overrides the default token TTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(tm *TokenManager) {
		if ttl > 0 {
			tm.ttl = ttl
		}
	}
}

// WithTokenIssuer sets the "iss" claim stamped on generated tokens.
func WithTokenIssuer(issuer string) TokenOption {
	return func(tm *TokenManager) {
		tm.issuer = issuer
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(logger Logger) TokenOption {
	return func(tm *TokenManager) {
		if logger != nil {
			tm.logger = logger
		}
	}
}

// NewTokenManager creates a TokenManager. A secret shorter than
// MinSecretLength is a configuration error, fatal at construction.
func NewTokenManager(secret []byte, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, goerrors.Wrap(ErrConfiguration, goerrors.CategoryInternal,
			fmt.Sprintf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret)))
	}

	tm := &TokenManager{
		secret: secret,
		ttl:    DefaultTokenTTL,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(tm)
		}
	}

	return tm, nil
}

// TTL returns the configured default token TTL.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Generate signs the claim set after stamping iat/nbf/exp and a token id.
// Caller-supplied time claims are overwritten; everything else passes
// through untouched.
func (tm *TokenManager) Generate(claims Claims, ttl ...time.Duration) (string, error) {
	expiry := tm.ttl
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}

	now := time.Now()

	signed := make(jwt.MapClaims, len(claims)+4)
	for k, v := range claims {
		signed[k] = v
	}

	signed[ClaimIssuedAt] = now.Unix()
	signed[ClaimNotBefore] = now.Unix()
	signed[ClaimExpiresAt] = now.Add(expiry).Unix()
	if _, ok := signed[ClaimTokenID]; !ok {
		signed[ClaimTokenID] = uuid.NewString()
	}
	if tm.issuer != "" {
		signed["iss"] = tm.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signed)

	raw, err := token.SignedString(tm.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return raw, nil
}

// Verify parses and validates a token, returning its claims. Expired,
// tampered, not-yet-valid, or structurally broken tokens all come back as
// ErrTokenExpired/ErrTokenInvalid; Verify never panics on hostile input.
func (tm *TokenManager) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tm.logger.Error("token verify rejected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		tm.logger.Error("token verify could not map claims")
		return nil, ErrTokenInvalid
	}

	return Claims(mapClaims), nil
}

// Refresh strips the managed time claims and the token id, then re-signs
// the remaining claims with fresh timestamps.
func (tm *TokenManager) Refresh(claims Claims, ttl ...time.Duration) (string, error) {
	next := claims.Clone()
	delete(next, ClaimIssuedAt)
	delete(next, ClaimNotBefore)
	delete(next, ClaimExpiresAt)
	delete(next, ClaimTokenID)

	return tm.Generate(next, ttl...)
}
