package authkit_test

import (
	"context"
	"time"

	authkit "github.com/goliatone/go-authkit"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// testClient is an in-memory Client implementation. It tracks cookie
// writes so tests can assert on the cookie contract without HTTP.
type testClient struct {
	ctx     context.Context
	store   authkit.SessionStore
	cookies map[string]string
	headers map[string]string
	secure  bool

	setCookies []*authkit.Cookie
	cleared    []string
}

func newTestClient() *testClient {
	return &testClient{
		ctx:     context.Background(),
		store:   authkit.NewMemoryStore().ForClient("test-client"),
		cookies: map[string]string{},
		headers: map[string]string{},
	}
}

func (c *testClient) Context() context.Context    { return c.ctx }
func (c *testClient) Store() authkit.SessionStore { return c.store }
func (c *testClient) Cookie(name string) string   { return c.cookies[name] }
func (c *testClient) Header(name string) string   { return c.headers[name] }
func (c *testClient) Secure() bool                { return c.secure }

func (c *testClient) SetCookie(cookie *authkit.Cookie) {
	c.cookies[cookie.Name] = cookie.Value
	c.setCookies = append(c.setCookies, cookie)
}

func (c *testClient) ClearCookie(name string) {
	delete(c.cookies, name)
	c.cleared = append(c.cleared, name)
}

func (c *testClient) lastCookie(name string) *authkit.Cookie {
	for i := len(c.setCookies) - 1; i >= 0; i-- {
		if c.setCookies[i].Name == name {
			return c.setCookies[i]
		}
	}
	return nil
}

func newTestConfig() *authkit.Config {
	return &authkit.Config{
		SigningSecret: "0123456789abcdef0123456789abcdef",
		BaseURL:       "https://app.example.com",
		SessionMaxAge: time.Hour,
	}
}

func newTestTokenManager(opts ...authkit.TokenOption) *authkit.TokenManager {
	tm, err := authkit.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), opts...)
	if err != nil {
		panic(err)
	}
	return tm
}

// fakeProvider is a scriptable Provider for pipeline tests.
type fakeProvider struct {
	name     string
	identity *authkit.Identity
	err      error
}

func (p *fakeProvider) Name() string               { return p.name }
func (p *fakeProvider) Type() authkit.ProviderType { return authkit.ProviderTypeCredentials }

func (p *fakeProvider) Config() authkit.ProviderInfo {
	return authkit.ProviderInfo{ID: p.name, Name: p.name, Type: string(authkit.ProviderTypeCredentials)}
}

func (p *fakeProvider) Authorize(_ context.Context, _ authkit.Client, _ authkit.Credentials) (*authkit.Identity, error) {
	return p.identity, p.err
}

// MockUserStore is a testify mock of the UserStore interface.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByIdentifier(ctx context.Context, identifier string) (*authkit.UserRecord, error) {
	args := m.Called(ctx, identifier)
	if record := args.Get(0); record != nil {
		return record.(*authkit.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// eventRecorder collects activity events in arrival order.
type eventRecorder struct {
	events []authkit.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event authkit.ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(t authkit.ActivityEventType) []authkit.ActivityEvent {
	var out []authkit.ActivityEvent
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeRouterContext stubs the router surface the controller touches and
// records the response. The embedded interface covers methods a test
// never reaches.
type embeddedRouterContext = router.Context

type fakeRouterContext struct {
	embeddedRouterContext

	params  map[string]string
	queries map[string]string
	headers map[string]string
	cookies map[string]string
	bind    func(any) error

	setCookies     []*router.Cookie
	jsonStatus     int
	jsonBody       any
	redirects      []string
	redirectStatus int
}

func newFakeRouterContext() *fakeRouterContext {
	return &fakeRouterContext{
		params:  map[string]string{},
		queries: map[string]string{},
		headers: map[string]string{},
		cookies: map[string]string{},
	}
}

func (c *fakeRouterContext) Context() context.Context    { return context.Background() }
func (c *fakeRouterContext) SetContext(context.Context) {}

func (c *fakeRouterContext) Param(name string, defaultValue ...string) string {
	if v, ok := c.params[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeRouterContext) Query(name string, defaultValue ...string) string {
	if v, ok := c.queries[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeRouterContext) Header(key string) string { return c.headers[key] }

func (c *fakeRouterContext) Cookies(name string, defaultValue ...string) string {
	if v, ok := c.cookies[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeRouterContext) Cookie(cookie *router.Cookie) {
	c.setCookies = append(c.setCookies, cookie)
	c.cookies[cookie.Name] = cookie.Value
}

func (c *fakeRouterContext) Bind(v any) error {
	if c.bind == nil {
		return nil
	}
	return c.bind(v)
}

func (c *fakeRouterContext) JSON(status int, v any) error {
	c.jsonStatus = status
	c.jsonBody = v
	return nil
}

func (c *fakeRouterContext) Redirect(path string, status ...int) error {
	c.redirects = append(c.redirects, path)
	if len(status) > 0 {
		c.redirectStatus = status[0]
	}
	return nil
}

func (c *fakeRouterContext) jsonMap() map[string]any {
	if m, ok := c.jsonBody.(map[string]any); ok {
		return m
	}
	return nil
}
