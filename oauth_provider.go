package authkit

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const defaultOAuthTimeout = 10 * time.Second

// stateStoreKey is where a provider parks its single-use anti-forgery
// state in the client store between initiation and callback.
func stateStoreKey(provider string) string {
	return "auth.state:" + provider
}

// callbackURLKey stores the post-login redirect target between initiation
// and callback.
const callbackURLKey = "auth.callback-url"

// OAuthConfig configures an OAuth2 authorization-code provider acting as a
// relying party against an external IdP.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient for token exchange and profile fetch. Defaults to a
	// client with a bounded timeout; external calls are never retried.
	HTTPClient *http.Client

	// Timeout applied when HTTPClient is not supplied.
	Timeout time.Duration
}

// OAuth2Provider implements the authorization-code flow against a single
// external IdP. Its lifecycle per sign-in is: build the authorization URL
// and persist the anti-forgery state, then on callback verify-and-consume
// the state, exchange the code, and fetch the profile.
type OAuth2Provider struct {
	name       string
	config     OAuthConfig
	httpClient *http.Client
	stateTTL   time.Duration
	logger     Logger
}

// OAuthOption configures an OAuth2Provider.
type OAuthOption func(*OAuth2Provider)

// WithOAuthLogger overrides the logger.
func WithOAuthLogger(logger Logger) OAuthOption {
	return func(p *OAuth2Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStateTTL bounds how long an unused anti-forgery state survives.
func WithStateTTL(ttl time.Duration) OAuthOption {
	return func(p *OAuth2Provider) {
		if ttl > 0 {
			p.stateTTL = ttl
		}
	}
}

// NewOAuth2Provider creates a provider for the named IdP. Missing client
// credentials or endpoint URLs are configuration errors.
func NewOAuth2Provider(name string, cfg OAuthConfig, opts ...OAuthOption) (*OAuth2Provider, error) {
	if name == "" {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal, "oauth provider requires a name")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal,
			fmt.Sprintf("oauth provider %q requires client credentials", name))
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, errors.Wrap(ErrConfiguration, errors.CategoryInternal,
			fmt.Sprintf("oauth provider %q requires auth, token, and userinfo URLs", name))
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultOAuthTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	p := &OAuth2Provider{
		name:       name,
		config:     cfg,
		httpClient: client,
		stateTTL:   defaultStateTTL,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Name implements Provider.
func (p *OAuth2Provider) Name() string {
	return p.name
}

// Type implements Provider.
func (p *OAuth2Provider) Type() ProviderType {
	return ProviderTypeOAuth
}

// Config implements Provider.
func (p *OAuth2Provider) Config() ProviderInfo {
	return ProviderInfo{
		ID:   p.name,
		Name: p.name,
		Type: string(ProviderTypeOAuth),
	}
}

// BeginAuth implements RedirectingProvider: it generates the anti-forgery
// state, persists it (and the redirect target) in the client store, and
// builds the authorization URL.
func (p *OAuth2Provider) BeginAuth(ctx context.Context, client Client, redirectTo string) (*AuthRedirect, error) {
	state, err := generateState()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate state")
	}

	if err := client.Store().Set(ctx, stateStoreKey(p.name), []byte(state), p.stateTTL); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist state")
	}

	if redirectTo != "" {
		if err := client.Store().Set(ctx, callbackURLKey, []byte(redirectTo), p.stateTTL); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist callback url")
		}
	}

	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(p.config.Scopes, " ")},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}

	return &AuthRedirect{
		URL:      p.config.AuthURL + "?" + params.Encode(),
		State:    state,
		Provider: p.name,
	}, nil
}

// HandleCallback implements RedirectingProvider. The stored state is
// consumed no matter the outcome, so a state value can never be replayed.
// The comparison is constant time.
func (p *OAuth2Provider) HandleCallback(ctx context.Context, client Client, code, state string) (*Identity, error) {
	stored, err := client.Store().Get(ctx, stateStoreKey(p.name))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read state")
	}

	if delErr := client.Store().Delete(ctx, stateStoreKey(p.name)); delErr != nil {
		p.logger.Warn("failed to consume oauth state", "provider", p.name, "error", delErr)
	}

	if len(stored) == 0 || state == "" || !hmac.Equal(stored, []byte(state)) {
		return nil, ErrCSRFMismatch
	}

	token, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return p.fetchProfile(ctx, token)
}

// Authorize implements Provider: the code/state pair is the credential.
func (p *OAuth2Provider) Authorize(ctx context.Context, client Client, creds Credentials) (*Identity, error) {
	if creds.Code == "" {
		return nil, nil
	}
	return p.HandleCallback(ctx, client, creds.Code, creds.State)
}

// exchange trades the authorization code for an access token. Any non-2xx
// response, error payload, missing access token, or timeout is a terminal
// ErrTokenExchangeFailed, never silently swallowed, never retried.
func (p *OAuth2Provider) exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", p.exchangeError(0, "transport", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", p.exchangeError(resp.StatusCode, "read_body", err)
	}

	var tokenResp oauthTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", p.exchangeError(resp.StatusCode, "invalid_response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || tokenResp.Error != "" {
		code := tokenResp.Error
		if code == "" {
			code = "http_" + strconv.Itoa(resp.StatusCode)
		}
		return "", p.exchangeError(resp.StatusCode, code, nil)
	}

	if tokenResp.AccessToken == "" {
		return "", p.exchangeError(resp.StatusCode, "missing_access_token", nil)
	}

	return tokenResp.AccessToken, nil
}

// fetchProfile calls the userinfo endpoint with the access token and maps
// the payload into an Identity. Error-shaped payloads fail closed.
func (p *OAuth2Provider) fetchProfile(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.profileError(0, "transport", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.profileError(resp.StatusCode, "read_body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.profileError(resp.StatusCode, "http_"+strconv.Itoa(resp.StatusCode), nil)
	}

	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, p.profileError(resp.StatusCode, "invalid_response", err)
	}

	if errVal, ok := profile["error"]; ok && errVal != nil {
		return nil, p.profileError(resp.StatusCode, fmt.Sprintf("%v", errVal), nil)
	}

	return p.mapProfile(profile), nil
}

// mapProfile normalizes a userinfo payload. Well-known claim names map to
// the Identity fields; everything travels along in Traits.
func (p *OAuth2Provider) mapProfile(profile map[string]any) *Identity {
	identity := &Identity{
		Provider: p.name,
		Traits:   profile,
	}

	identity.ID = firstString(profile, "sub", "id", "user_id")
	identity.Email = firstString(profile, "email")
	identity.Name = firstString(profile, "name", "login", "username")

	return identity
}

func (p *OAuth2Provider) exchangeError(status int, code string, cause error) error {
	p.logger.Error("oauth token exchange failed", "provider", p.name, "status", status, "code", code, "error", cause)
	return errors.Wrap(ErrTokenExchangeFailed, errors.CategoryAuth, ErrTokenExchangeFailed.Message).
		WithTextCode(ErrTokenExchangeFailed.TextCode).
		WithMetadata(map[string]any{
			"provider": p.name,
			"status":   status,
			"code":     code,
		})
}

func (p *OAuth2Provider) profileError(status int, code string, cause error) error {
	p.logger.Error("oauth profile fetch failed", "provider", p.name, "status", status, "code", code, "error", cause)
	return errors.Wrap(ErrProfileFetchFailed, errors.CategoryAuth, ErrProfileFetchFailed.Message).
		WithTextCode(ErrProfileFetchFailed.TextCode).
		WithMetadata(map[string]any{
			"provider": p.name,
			"status":   status,
			"code":     code,
		})
}

type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// generateState produces a cryptographically random anti-forgery value.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// firstString picks the first present non-empty string claim. Numeric ids
// are rendered to preserve them as subjects.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
