package web_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signIn(t *testing.T, ctrl *web.Controller, sid, username, password string) *fakeContext {
	t.Helper()
	ctx := newFakeContext("POST", "/auth/signin").
		withJSON(web.SignInPayload{Username: username, Password: password})
	if sid != "" {
		ctx.withCookie("sid", sid)
	}
	require.NoError(t, ctrl.SignIn(ctx))
	return ctx
}

func TestGuard_RedirectsAndReturnsToOrigin(t *testing.T) {
	registry := newRegistry(newStubProvider())
	settings := testSettings()
	guard := web.NewGuard(registry, settings)
	ctrl := web.NewController(registry, settings)

	visit := newFakeContext("GET", "/inventory?store=store_001")
	require.NoError(t, guard.Protected()(nextHandler(visit))(visit))

	assert.False(t, visit.nextCalled)
	assert.Equal(t, "/login", visit.redirectTo)
	assert.Equal(t, http.StatusSeeOther, visit.status)
	require.Contains(t, visit.cookiesOut, "rejected_route")
	assert.Equal(t, "/inventory?store=store_001", visit.cookiesOut["rejected_route"].Value)

	sid := visit.sid()
	require.NotEmpty(t, sid)

	login := newFakeContext("POST", "/auth/signin").
		withJSON(web.SignInPayload{Username: "alice", Password: "Correct1!"}).
		withCookie("sid", sid).
		withCookie("rejected_route", "/inventory?store=store_001")
	require.NoError(t, ctrl.SignIn(login))

	assert.Equal(t, http.StatusOK, login.status)
	resp := login.sessionResponse()
	assert.Equal(t, "/inventory?store=store_001", resp.Redirect)
	assert.Equal(t, auth.StatusAuthenticated, resp.Session.Status)
	require.NotNil(t, resp.Session.User)
	assert.Equal(t, []string{"store_001", "store_003"}, resp.Session.User.Stores)
	assert.Equal(t, "", login.cookiesOut["rejected_route"].Value)

	again := newFakeContext("GET", "/inventory").withCookie("sid", sid)
	require.NoError(t, guard.Protected()(nextHandler(again))(again))
	assert.True(t, again.nextCalled)

	snap, ok := again.locals[web.SnapshotKey].(auth.SessionSnapshot)
	require.True(t, ok)
	assert.True(t, snap.HasStoreAccess("store_003"))
	assert.False(t, snap.HasStoreAccess("store_002"))
}

func TestGuard_AlwaysDefaultPolicy(t *testing.T) {
	registry := newRegistry(newStubProvider())
	settings := testSettings()
	settings.RedirectPolicy = "always_default"

	visit := newFakeContext("GET", "/reports")
	require.NoError(t, web.NewGuard(registry, settings).Protected()(nextHandler(visit))(visit))
	assert.Equal(t, "/login", visit.redirectTo)
	assert.NotContains(t, visit.cookiesOut, "rejected_route")

	login := signIn(t, web.NewController(registry, settings), visit.sid(), "alice", "Correct1!")
	assert.Equal(t, "/dashboard", login.sessionResponse().Redirect)
}

func TestGuard_RoleAndGuestOnly(t *testing.T) {
	registry := newRegistry(newStubProvider())
	settings := testSettings()
	guard := web.NewGuard(registry, settings)

	sid := signIn(t, web.NewController(registry, settings), "", "alice", "Correct1!").sid()

	admin := newFakeContext("GET", "/admin/users").withCookie("sid", sid)
	require.NoError(t, guard.Protected(auth.RoleAdmin)(nextHandler(admin))(admin))
	assert.False(t, admin.nextCalled)
	assert.Equal(t, http.StatusForbidden, admin.status)
	assert.Equal(t, "ROUTE_FORBIDDEN", admin.errorResponse().Error.TextCode)

	login := newFakeContext("GET", "/login").withCookie("sid", sid)
	require.NoError(t, guard.GuestOnly()(nextHandler(login))(login))
	assert.Equal(t, "/dashboard", login.redirectTo)
}

func TestGuard_LoadingWhileAuthenticating(t *testing.T) {
	provider := newStubProvider()
	registry := newRegistry(provider)
	settings := testSettings()
	guard := web.NewGuard(registry, settings)
	ctrl := web.NewController(registry, settings)

	first := newFakeContext("GET", "/auth/session")
	require.NoError(t, ctrl.Session(first))
	sid := first.sid()

	provider.entered = make(chan struct{})
	provider.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		login := newFakeContext("POST", "/auth/signin").
			withJSON(web.SignInPayload{Username: "alice", Password: "Correct1!"}).
			withCookie("sid", sid)
		_ = ctrl.SignIn(login)
	}()
	<-provider.entered

	visit := newFakeContext("GET", "/inventory").withCookie("sid", sid)
	require.NoError(t, guard.Protected()(nextHandler(visit))(visit))

	assert.False(t, visit.nextCalled)
	assert.Empty(t, visit.redirectTo)
	assert.Equal(t, http.StatusAccepted, visit.status)
	assert.Equal(t, "1", visit.headersOut["Retry-After"])

	close(provider.release)
	<-done

	m, ok := registry.Peek(sid)
	require.True(t, ok)
	assert.Equal(t, auth.StatusAuthenticated, m.Snapshot().Status)
}

func TestController_SignInFailures(t *testing.T) {
	registry := newRegistry(newStubProvider())
	ctrl := web.NewController(registry, testSettings())

	t.Run("wrong password", func(t *testing.T) {
		ctx := signIn(t, ctrl, "", "bob", "wrongpass")
		assert.Equal(t, http.StatusUnauthorized, ctx.status)
		assert.Equal(t, "Incorrect username or password.", ctx.errorResponse().Error.Message)

		m, ok := registry.Peek(ctx.sid())
		require.True(t, ok)
		snap := m.Snapshot()
		assert.Equal(t, auth.StatusAuthError, snap.Status)
		assert.Equal(t, "Incorrect username or password.", snap.Error)
		assert.Nil(t, snap.Identity)
	})

	t.Run("pending account", func(t *testing.T) {
		ctx := signIn(t, ctrl, "", "paula", "Correct1!")
		assert.Equal(t, http.StatusForbidden, ctx.status)
		assert.Equal(t, auth.TextCodeAccountNotActive, ctx.errorResponse().Error.TextCode)

		m, _ := registry.Peek(ctx.sid())
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		assert.Empty(t, m.IDToken(context.Background()))
	})

	t.Run("malformed body", func(t *testing.T) {
		ctx := newFakeContext("POST", "/auth/signin")
		require.NoError(t, ctrl.SignIn(ctx))
		assert.Equal(t, http.StatusBadRequest, ctx.status)
		assert.Equal(t, "MALFORMED_PAYLOAD", ctx.errorResponse().Error.TextCode)
	})
}

func TestController_SignUpFlow(t *testing.T) {
	registry := newRegistry(newStubProvider())
	ctrl := web.NewController(registry, testSettings())

	weak := newFakeContext("POST", "/auth/signup").
		withJSON(auth.SignUpInput{Username: "carol", Password: "short", Email: "carol@example.com"})
	require.NoError(t, ctrl.SignUp(weak))
	assert.Equal(t, http.StatusBadRequest, weak.status)
	assert.Equal(t, auth.TextCodeInvalidInput, weak.errorResponse().Error.TextCode)

	ok := newFakeContext("POST", "/auth/signup").
		withJSON(auth.SignUpInput{Username: "carol", Password: "Secret123!", Email: "carol@example.com"}).
		withCookie("sid", weak.sid())
	require.NoError(t, ctrl.SignUp(ok))
	assert.Equal(t, http.StatusCreated, ok.status)
	resp := ok.sessionResponse()
	assert.Equal(t, auth.StatusPendingConfirmation, resp.Session.Status)
	assert.Equal(t, "carol", resp.Session.PendingUsername)
	require.NotNil(t, resp.SignUp)
	assert.True(t, resp.SignUp.ConfirmationRequired)

	confirm := newFakeContext("POST", "/auth/signup/confirm").
		withJSON(web.ConfirmPayload{Username: "carol", Code: "123456"}).
		withCookie("sid", weak.sid())
	require.NoError(t, ctrl.ConfirmSignUp(confirm))
	assert.Equal(t, auth.StatusUnauthenticated, confirm.sessionResponse().Session.Status)
	assert.Equal(t, "/login", confirm.sessionResponse().Redirect)
}

func TestController_SignOutAndDelete(t *testing.T) {
	provider := newStubProvider()
	registry := newRegistry(provider)
	ctrl := web.NewController(registry, testSettings())

	sid := signIn(t, ctrl, "", "alice", "Correct1!").sid()

	out := newFakeContext("POST", "/auth/signout").withCookie("sid", sid)
	require.NoError(t, ctrl.SignOut(out))
	assert.Equal(t, auth.StatusUnauthenticated, out.sessionResponse().Session.Status)
	assert.Nil(t, out.sessionResponse().Session.User)

	del := newFakeContext("DELETE", "/auth/account").withCookie("sid", sid)
	require.NoError(t, ctrl.DeleteAccount(del))
	assert.Equal(t, http.StatusUnauthorized, del.status)

	signIn(t, ctrl, sid, "alice", "Correct1!")
	del = newFakeContext("DELETE", "/auth/account").withCookie("sid", sid)
	require.NoError(t, ctrl.DeleteAccount(del))
	assert.Equal(t, http.StatusOK, del.status)

	_, ok := registry.Peek(sid)
	assert.False(t, ok)
}

func TestController_ChangePasswordRefreshesSession(t *testing.T) {
	provider := newStubProvider()
	registry := newRegistry(provider)
	ctrl := web.NewController(registry, testSettings())

	sid := signIn(t, ctrl, "", "alice", "Correct1!").sid()

	provider.mu.Lock()
	provider.accounts["alice"].attrs[auth.AttrRole] = "manager"
	provider.mu.Unlock()

	change := newFakeContext("POST", "/auth/password").
		withJSON(web.ChangePasswordPayload{OldPassword: "Correct1!", NewPassword: "N3w!Password"}).
		withCookie("sid", sid)
	require.NoError(t, ctrl.ChangePassword(change))
	assert.Equal(t, http.StatusOK, change.status)

	resp := change.sessionResponse()
	assert.Equal(t, auth.StatusAuthenticated, resp.Session.Status)
	require.NotNil(t, resp.Session.User)
	assert.Equal(t, auth.RoleManager, resp.Session.User.Role)

	m, ok := registry.Peek(sid)
	require.True(t, ok)
	assert.Equal(t, "id-alice", m.IDToken(context.Background()))
}

func TestCSRF(t *testing.T) {
	registry := newRegistry(newStubProvider())
	settings := testSettings()
	settings.CSRFSecret = "csrf-secret"
	ctrl := web.NewController(registry, settings)
	csrf := web.NewCSRF(settings)
	require.NotNil(t, csrf)

	session := newFakeContext("GET", "/auth/session")
	require.NoError(t, ctrl.Session(session))
	token := session.sessionResponse().CSRFToken
	require.NotEmpty(t, token)
	sid := session.sid()

	assert.NoError(t, csrf.Verify(sid, token))
	assert.True(t, errors.Is(csrf.Verify("other-sid", token), web.ErrCSRFMismatch))
	assert.True(t, errors.Is(csrf.Verify(sid, ""), web.ErrCSRFMissing))
	assert.True(t, errors.Is(csrf.Verify(sid, "garbage"), web.ErrCSRFMismatch))

	mw := csrf.Middleware()

	missing := newFakeContext("POST", "/auth/signin").withCookie("sid", sid)
	require.NoError(t, mw(nextHandler(missing))(missing))
	assert.False(t, missing.nextCalled)
	assert.Equal(t, http.StatusForbidden, missing.status)

	valid := newFakeContext("POST", "/auth/signin").withCookie("sid", sid)
	valid.headersIn[web.CSRFHeader] = token
	require.NoError(t, mw(nextHandler(valid))(valid))
	assert.True(t, valid.nextCalled)

	safe := newFakeContext("GET", "/auth/session")
	require.NoError(t, mw(nextHandler(safe))(safe))
	assert.True(t, safe.nextCalled)

	assert.Nil(t, web.NewCSRF(testSettings()))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", goerrors.New("bad", goerrors.CategoryValidation), http.StatusBadRequest},
		{"auth", auth.ErrNotAuthenticated, http.StatusUnauthorized},
		{"authz", auth.ErrAccountNotActive, http.StatusForbidden},
		{"busy", auth.ErrBusy, http.StatusConflict},
		{"external", goerrors.New("down", goerrors.CategoryExternal), http.StatusBadGateway},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, web.StatusFor(tt.err))
		})
	}
}
