package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/web"
)

// fakeContext records what handlers write instead of relying on mock
// expectations for every call.
type fakeContext struct {
	*router.MockContext

	url       string
	method    string
	body      []byte
	cookiesIn map[string]string
	headersIn map[string]string

	cookiesOut map[string]*router.Cookie
	headersOut map[string]string
	locals     map[any]any

	status     int
	response   any
	redirectTo string
	nextCalled bool
}

func newFakeContext(method, url string) *fakeContext {
	return &fakeContext{
		MockContext: router.NewMockContext(),
		url:         url,
		method:      method,
		cookiesIn:   map[string]string{},
		headersIn:   map[string]string{},
		cookiesOut:  map[string]*router.Cookie{},
		headersOut:  map[string]string{},
		locals:      map[any]any{},
	}
}

func (c *fakeContext) withJSON(v any) *fakeContext {
	c.body, _ = json.Marshal(v)
	return c
}

func (c *fakeContext) withCookie(name, value string) *fakeContext {
	c.cookiesIn[name] = value
	return c
}

func (c *fakeContext) Context() context.Context { return context.Background() }

func (c *fakeContext) OriginalURL() string { return c.url }

func (c *fakeContext) Method() string { return c.method }

func (c *fakeContext) Header(key string) string { return c.headersIn[key] }

func (c *fakeContext) Cookie(cookie *router.Cookie) { c.cookiesOut[cookie.Name] = cookie }

func (c *fakeContext) SetHeader(k, v string) router.Context {
	c.headersOut[k] = v
	return c
}

func (c *fakeContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookiesIn[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeContext) Bind(v any) error {
	if len(c.body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(c.body, v)
}

func (c *fakeContext) JSON(code int, v any) error {
	c.status = code
	c.response = v
	return nil
}

func (c *fakeContext) Redirect(path string, status ...int) error {
	c.redirectTo = path
	if len(status) > 0 {
		c.status = status[0]
	}
	return nil
}

func (c *fakeContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *fakeContext) sessionResponse() web.SessionResponse {
	resp, _ := c.response.(web.SessionResponse)
	return resp
}

func (c *fakeContext) errorResponse() web.ErrorBody {
	resp, _ := c.response.(web.ErrorBody)
	return resp
}

// sid returns the session cookie written by the handler.
func (c *fakeContext) sid() string {
	if cookie, ok := c.cookiesOut["sid"]; ok {
		return cookie.Value
	}
	return ""
}

func nextHandler(c *fakeContext) router.HandlerFunc {
	return func(router.Context) error {
		c.nextCalled = true
		return c.JSON(200, "page")
	}
}

type account struct {
	password string
	attrs    auth.Attributes
}

// stubProvider is an in-memory identity provider.
type stubProvider struct {
	mu       sync.Mutex
	accounts map[string]account
	signOuts int

	// when set, SignIn signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		accounts: map[string]account{
			"alice": {password: "Correct1!", attrs: auth.Attributes{
				"sub":                 "sub-alice",
				"name":                "Alice",
				"email":               "alice@example.com",
				"custom:role":         "employee",
				"custom:store_access": "store_001,store_003",
				"custom:status":       "active",
			}},
			"paula": {password: "Correct1!", attrs: auth.Attributes{
				"sub":           "sub-paula",
				"custom:status": "pending",
			}},
		},
	}
}

func tokensFor(username string) auth.Tokens {
	return auth.Tokens{
		IDToken:      "id-" + username,
		AccessToken:  "access-" + username,
		RefreshToken: "refresh-" + username,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func (p *stubProvider) lookup(tokens auth.Tokens) (string, account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, acc := range p.accounts {
		if tokens.AccessToken == "access-"+name {
			return name, acc, nil
		}
	}
	return "", account{}, &auth.ProviderError{Message: "Access Token has been revoked", Kind: auth.ErrNoSession}
}

func (p *stubProvider) SignUp(_ context.Context, in auth.SignUpInput) (auth.SignUpResult, error) {
	return auth.SignUpResult{UserID: "sub-" + in.Username, ConfirmationRequired: true}, nil
}

func (p *stubProvider) ConfirmSignUp(context.Context, string, string) error { return nil }

func (p *stubProvider) ResendConfirmationCode(context.Context, string) (auth.CodeDelivery, error) {
	return auth.CodeDelivery{Medium: "EMAIL"}, nil
}

func (p *stubProvider) SignIn(_ context.Context, username, password string) (auth.Tokens, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
		<-p.release
	}

	p.mu.Lock()
	acc, ok := p.accounts[username]
	p.mu.Unlock()
	if !ok || acc.password != password {
		return auth.Tokens{}, &auth.ProviderError{Message: "Incorrect username or password.", Kind: auth.ErrInvalidCredentials}
	}
	return tokensFor(username), nil
}

func (p *stubProvider) SignOut(context.Context, auth.Tokens) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}

func (p *stubProvider) GetCurrentUser(_ context.Context, tokens auth.Tokens) (auth.UserIdentity, error) {
	name, acc, err := p.lookup(tokens)
	if err != nil {
		return auth.UserIdentity{}, err
	}
	return auth.UserIdentity{UserID: acc.attrs.Get(auth.AttrSubject), Username: name}, nil
}

func (p *stubProvider) FetchUserAttributes(_ context.Context, tokens auth.Tokens) (auth.Attributes, error) {
	_, acc, err := p.lookup(tokens)
	if err != nil {
		return nil, err
	}
	return acc.attrs.Clone(), nil
}

func (p *stubProvider) FetchSession(_ context.Context, tokens auth.Tokens) (auth.Tokens, error) {
	return tokens, nil
}

func (p *stubProvider) ResetPassword(context.Context, string) (auth.CodeDelivery, error) {
	return auth.CodeDelivery{Medium: "EMAIL"}, nil
}

func (p *stubProvider) ConfirmResetPassword(context.Context, string, string, string) error {
	return nil
}

func (p *stubProvider) UpdatePassword(context.Context, auth.Tokens, string, string) error {
	return nil
}

func (p *stubProvider) DeleteUser(_ context.Context, tokens auth.Tokens) error {
	name, _, err := p.lookup(tokens)
	if err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.accounts, name)
	p.mu.Unlock()
	return nil
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func newRegistry(provider auth.IdentityProvider) *auth.Registry {
	return auth.NewRegistry(func(string) *auth.SessionManager {
		return auth.NewSessionManager(provider,
			auth.WithLogger(quietLogger{}),
			auth.WithCredentialStore(auth.NewMemoryCredentialStore()),
		)
	}, 16, time.Minute, auth.WithRegistryLogger(quietLogger{}))
}

func testSettings() web.Settings {
	s := web.DefaultSettings()
	s.SecureCookies = false
	return s
}
