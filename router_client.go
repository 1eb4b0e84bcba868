package authkit

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// clientIDCookieName identifies a browser across requests so its store
// namespace stays stable before any session exists (the anti-forgery state
// needs it).
const clientIDCookieName = "auth.client-id"

// RouterClients builds the core Client capability on top of go-router
// request contexts. One instance is shared by the controller and the
// middleware so both see the same store namespaces.
type RouterClients struct {
	stores SessionStores
	cfg    *Config
	secure bool
}

// NewRouterClients creates a client factory over the given stores.
func NewRouterClients(stores SessionStores, cfg *Config) *RouterClients {
	return &RouterClients{
		stores: stores,
		cfg:    cfg,
		secure: strings.HasPrefix(cfg.BaseURL, "https://"),
	}
}

// FromContext adapts a request context into a Client, minting the
// client-id cookie on first contact.
func (rc *RouterClients) FromContext(ctx router.Context) Client {
	clientID := ctx.Cookies(clientIDCookieName)
	if clientID == "" {
		clientID = uuid.NewString()
		ctx.Cookie(&router.Cookie{
			Name:     clientIDCookieName,
			Value:    clientID,
			Path:     "/",
			Expires:  time.Now().Add(rc.cfg.SessionMaxAge),
			HTTPOnly: true,
			Secure:   rc.secure,
			SameSite: "Lax",
		})
	}

	return &routerClient{
		ctx:    ctx,
		store:  rc.stores.ForClient(clientID),
		secure: rc.secure,
	}
}

type routerClient struct {
	ctx    router.Context
	store  SessionStore
	secure bool
}

func (c *routerClient) Context() context.Context {
	return c.ctx.Context()
}

func (c *routerClient) Store() SessionStore {
	return c.store
}

func (c *routerClient) Cookie(name string) string {
	return c.ctx.Cookies(name)
}

func (c *routerClient) SetCookie(cookie *Cookie) {
	c.ctx.Cookie(&router.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Domain:   cookie.Domain,
		Expires:  cookie.Expires,
		MaxAge:   cookie.MaxAge,
		Secure:   cookie.Secure,
		HTTPOnly: cookie.HTTPOnly,
		SameSite: cookie.SameSite,
	})
}

func (c *routerClient) ClearCookie(name string) {
	c.ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * 24 * 365),
		HTTPOnly: true,
		Secure:   c.secure,
		SameSite: "Lax",
	})
}

func (c *routerClient) Header(name string) string {
	return c.ctx.Header(name)
}

func (c *routerClient) Secure() bool {
	return c.secure
}
