// Package authkit provides a provider-based authentication subsystem (JWT
// session tokens, OAuth2 authorization-code flows, credential sign-in) plus
// extension points for downstream policy.
//
// Providers:
//   - Provider is the single entry point for authentication backends. The
//     built-in CredentialsProvider verifies bcrypt password hashes against a
//     UserStore; OAuth2Provider drives the authorization-code flow against
//     any spec-compliant identity provider. A denied attempt is a nil
//     identity with a nil error, never an error value.
//
// Sessions:
//   - SessionManager persists a JSON session record plus an HS256 JWT in a
//     per-client SessionStore and mirrors the token into an httpOnly cookie.
//     Requests without a stored record fall back to the bearer token so
//     purely stateless API clients still resolve a session.
//
// Hooks:
//   - Hooks collects the extension points invoked during sign-in: SignInGate
//     can veto an authenticated identity, ClaimsDecorator shapes token
//     claims before signing, RedirectPolicy sanitizes post-auth redirects,
//     and ActivitySink receives best-effort audit events (errors are logged,
//     never propagated, so sinks cannot block authentication).
package authkit
