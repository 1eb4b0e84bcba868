package authkit

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const csrfStoreKey = "auth.csrf-token"

// csrfHeaderName carries the anti-forgery token when the signin payload
// does not.
const csrfHeaderName = "X-CSRF-Token"

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// Debug dumps request payloads and responses to stdout
	Debug bool

	// ErrorHandler handles unexpected errors (optional)
	ErrorHandler func(ctx router.Context, err error) error

	Logger Logger
}

// HTTPController exposes the authentication flows over JSON routes.
type HTTPController struct {
	auther  *Auther
	clients *RouterClients
	config  HTTPConfig
}

// NewHTTPController creates the controller over an authenticator and the
// shared client factory.
func NewHTTPController(auther *Auther, clients *RouterClients, cfg HTTPConfig) *HTTPController {
	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	return &HTTPController{
		auther:  auther,
		clients: clients,
		config:  cfg,
	}
}

// RegisterRoutes registers the auth routes on a router group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/signin", c.SignIn)
	group.Post("/signout", c.SignOut)
	group.Get("/signout", c.SignOut)
	group.Get("/callback/:provider", c.Callback)
	group.Get("/session", c.Session)
	group.Get("/providers", c.ListProviders)
	group.Get("/csrf", c.CSRF)
	group.Get("/error", c.Error)
}

// SignInRequest is the signin payload.
type SignInRequest struct {
	Provider    string      `form:"provider" json:"provider"`
	Credentials Credentials `form:"credentials" json:"credentials"`
	CSRFToken   string      `form:"csrf_token" json:"csrf_token"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Provider,
			validation.Required,
		),
	)
}

// SignIn authenticates against a named provider. OAuth providers answer
// with a redirect envelope instead of a session.
func (c *HTTPController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"status":     "error",
			"message":    "invalid signin payload",
			"validation": err.Error(),
		})
	}

	if c.config.Debug {
		fmt.Println("======= AUTH SIGNIN =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	client := c.clients.FromContext(ctx)

	provider, ok := c.auther.Provider(payload.Provider)
	if !ok {
		return ctx.JSON(router.StatusNotFound, map[string]any{
			"status":  "error",
			"code":    TextCodeProviderNotRegistered,
			"message": c.auther.ErrorMessage(TextCodeProviderNotRegistered),
		})
	}

	if rp, ok := provider.(RedirectingProvider); ok && payload.Credentials.Code == "" {
		redirect, err := c.auther.BeginOAuth(client, rp.Name(), payload.Credentials.RedirectTo)
		if err != nil {
			return c.handleError(ctx, err)
		}

		return ctx.JSON(router.StatusOK, map[string]any{
			"status": "ok",
			"type":   "redirect",
			"url":    redirect.URL,
		})
	}

	if payload.Credentials.Code == "" {
		presented := payload.CSRFToken
		if presented == "" {
			presented = ctx.Header(csrfHeaderName)
		}

		if err := VerifyCSRFToken(ctx.Context(), client.Store(), presented); err != nil {
			if !errors.Is(err, ErrCSRFMismatch) {
				return c.handleError(ctx, err)
			}

			code := TextCode(err)
			return ctx.JSON(router.StatusForbidden, map[string]any{
				"status":  "error",
				"code":    code,
				"message": c.auther.ErrorMessage(code),
			})
		}
	}

	session, err := c.auther.SignIn(client, payload.Provider, payload.Credentials)
	if err != nil {
		code := TextCode(err)
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"status":  "error",
			"code":    code,
			"message": c.auther.ErrorMessage(code),
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":  "ok",
		"session": session,
	})
}

// SignOut destroys the current session. Safe to call without one.
func (c *HTTPController) SignOut(ctx router.Context) error {
	client := c.clients.FromContext(ctx)

	if err := c.auther.SignOut(client); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":  "ok",
		"message": "signed out",
	})
}

// Callback completes the OAuth authorization-code flow.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")
	client := c.clients.FromContext(ctx)

	if errCode := ctx.Query("error"); errCode != "" {
		c.config.Logger.Warn("oauth callback denied", "provider", providerName, "error", errCode)
		return c.redirectError(ctx, providerName, TextCodeAuthorizationDenied)
	}

	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		return c.redirectError(ctx, providerName, TextCodeCallbackRejected)
	}

	_, err := c.auther.SignIn(client, providerName, Credentials{
		Code:  code,
		State: state,
	})
	if err != nil {
		c.config.Logger.Error("oauth callback failed", "provider", providerName, "error", err)
		return c.redirectError(ctx, providerName, TextCode(err))
	}

	redirect := c.auther.CallbackRedirect(client)

	return ctx.Redirect(redirect, http.StatusSeeOther)
}

// Session returns the current session, if any.
func (c *HTTPController) Session(ctx router.Context) error {
	client := c.clients.FromContext(ctx)

	session, err := c.auther.GetSession(client)
	if err != nil {
		return c.handleError(ctx, err)
	}

	if session == nil {
		return ctx.JSON(router.StatusOK, map[string]any{
			"status":        "ok",
			"authenticated": false,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": true,
		"session":       session,
	})
}

// ListProviders returns the registered providers keyed by name.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	providers := map[string]ProviderInfo{}
	for _, info := range c.auther.Providers() {
		providers[info.ID] = info
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":    "ok",
		"providers": providers,
	})
}

// VerifyCSRFToken enforces the double submit contract for a client scope.
// A scope that never fetched a token passes; once a token was issued it
// must be presented back and match. The stored token is consumed on the
// first verification regardless of outcome, so a rejected attempt cannot
// retry against the same token.
func VerifyCSRFToken(ctx context.Context, store SessionStore, presented string) error {
	stored, err := store.Get(ctx, csrfStoreKey)
	if err != nil {
		return err
	}

	if stored == nil {
		return nil
	}

	if err := store.Delete(ctx, csrfStoreKey); err != nil {
		return err
	}

	if presented == "" || !hmac.Equal(stored, []byte(presented)) {
		return ErrCSRFMismatch
	}

	return nil
}

// CSRF issues an anti-forgery token bound to the client scope. Credentials
// sign-ins from a scope that fetched a token must echo it back, either as
// the csrf_token payload field or the X-CSRF-Token header; the token is
// single use. Scopes that never call this endpoint are not gated, so
// callers that want mandatory protection fetch a token before rendering
// their sign-in form.
func (c *HTTPController) CSRF(ctx router.Context) error {
	client := c.clients.FromContext(ctx)

	token, err := generateState()
	if err != nil {
		return c.handleError(ctx, err)
	}

	cfg := c.auther.Config()
	if err := client.Store().Set(ctx.Context(), csrfStoreKey, []byte(token), cfg.StateTTL); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":     "ok",
		"csrf_token": token,
	})
}

// Error maps a failure code to a human readable message.
func (c *HTTPController) Error(ctx router.Context) error {
	code := ctx.Query("error")
	if code == "" {
		code = ctx.Query("code")
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":   "error",
		"code":     code,
		"provider": ctx.Query("provider"),
		"message":  c.auther.ErrorMessage(code),
	})
}

func (c *HTTPController) redirectError(ctx router.Context, provider, code string) error {
	target := c.auther.Config().ErrorRoute
	target = appendQueryParam(target, "error", code)
	target = appendQueryParam(target, "code", code)
	if provider != "" {
		target = appendQueryParam(target, "provider", provider)
	}
	return ctx.Redirect(target, http.StatusSeeOther)
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	if c.config.Debug {
		fmt.Println("======= AUTH ERROR =======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{
			"error": err.Error(),
			"code":  TextCode(err),
		}))
		fmt.Println("==========================")
	}

	c.config.Logger.Error("auth controller error", "error", err)

	return ctx.JSON(router.StatusInternalServerError, map[string]any{
		"status":  "error",
		"code":    TextCode(err),
		"message": "internal error",
	})
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
