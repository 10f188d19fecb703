package web

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/invencare/go-auth"
)

type ControllerRoutes struct {
	Session              string
	SignIn               string
	SignOut              string
	SignUp               string
	ConfirmSignUp        string
	ResendCode           string
	PasswordReset        string
	PasswordResetConfirm string
	Password             string
	Account              string
}

func DefaultRoutes() ControllerRoutes {
	return ControllerRoutes{
		Session:              "/auth/session",
		SignIn:               "/auth/signin",
		SignOut:              "/auth/signout",
		SignUp:               "/auth/signup",
		ConfirmSignUp:        "/auth/signup/confirm",
		ResendCode:           "/auth/signup/resend",
		PasswordReset:        "/auth/password/reset",
		PasswordResetConfirm: "/auth/password/reset/confirm",
		Password:             "/auth/password",
		Account:              "/auth/account",
	}
}

// Controller exposes the session manager of each browser session as JSON.
type Controller struct {
	Routes  ControllerRoutes
	Logger  auth.Logger
	cookies sessionCookies
	guard   auth.RouteGuard
	csrf    *CSRF
	cfg     Config
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func WithRoutes(routes ControllerRoutes) ControllerOption {
	return func(c *Controller) {
		c.Routes = routes
	}
}

func NewController(sessions Sessions, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		Routes:  DefaultRoutes(),
		Logger:  nopLogger{},
		cookies: sessionCookies{sessions: sessions, cfg: cfg},
		guard: auth.NewRouteGuard(
			cfg.GetSignInRoute(),
			cfg.GetDefaultRoute(),
			auth.ParseRedirectPolicy(cfg.GetRedirectPolicy()),
		),
		csrf: NewCSRF(cfg),
		cfg:  cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts the controller endpoints, behind the CSRF check when
// a secret is configured.
func RegisterRoutes[T any](app router.Router[T], c *Controller) {
	csrf := c.csrf.Middleware()

	app.Get(c.Routes.Session, c.Session).SetName("auth.session")
	app.Post(c.Routes.SignIn, c.SignIn, csrf).SetName("auth.signin")
	app.Post(c.Routes.SignOut, c.SignOut, csrf).SetName("auth.signout")
	app.Post(c.Routes.SignUp, c.SignUp, csrf).SetName("auth.signup")
	app.Post(c.Routes.ConfirmSignUp, c.ConfirmSignUp, csrf).SetName("auth.signup.confirm")
	app.Post(c.Routes.ResendCode, c.ResendCode, csrf).SetName("auth.signup.resend")
	app.Post(c.Routes.PasswordReset, c.ResetPassword, csrf).SetName("auth.password.reset")
	app.Post(c.Routes.PasswordResetConfirm, c.ConfirmResetPassword, csrf).SetName("auth.password.reset.confirm")
	app.Post(c.Routes.Password, c.ChangePassword, csrf).SetName("auth.password")
	app.Delete(c.Routes.Account, c.DeleteAccount, csrf).SetName("auth.account.delete")
}

type SignInPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type ConfirmPayload struct {
	Username string `json:"username" form:"username"`
	Code     string `json:"code" form:"code"`
}

type UsernamePayload struct {
	Username string `json:"username" form:"username"`
}

type ResetConfirmPayload struct {
	Username    string `json:"username" form:"username"`
	Code        string `json:"code" form:"code"`
	NewPassword string `json:"new_password" form:"new_password"`
}

type ChangePasswordPayload struct {
	OldPassword string `json:"old_password" form:"old_password"`
	NewPassword string `json:"new_password" form:"new_password"`
}

// SessionResponse is returned by every endpoint that changes the session.
type SessionResponse struct {
	Session   SessionView        `json:"session"`
	Redirect  string             `json:"redirect,omitempty"`
	CSRFToken string             `json:"csrf_token,omitempty"`
	SignUp    *auth.SignUpResult `json:"sign_up,omitempty"`
	Delivery  *auth.CodeDelivery `json:"delivery,omitempty"`
}

var errMalformedPayload = goerrors.New("request body could not be parsed", goerrors.CategoryBadInput).
	WithTextCode("MALFORMED_PAYLOAD").
	WithCode(goerrors.CodeBadRequest)

func (c *Controller) Session(ctx router.Context) error {
	sid, manager := c.cookies.resolve(ctx)

	resp := SessionResponse{Session: NewSessionView(manager.Snapshot())}
	if c.csrf != nil {
		token, err := c.csrf.Issue(sid)
		if err != nil {
			c.Logger.Error("csrf token: %v", err)
			return writeError(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to issue csrf token"))
		}
		resp.CSRFToken = token
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) SignIn(ctx router.Context) error {
	payload := &SignInPayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	if err := manager.SignIn(ctx.Context(), payload.Username, payload.Password); err != nil {
		c.Logger.Info("sign in failed for %s: %v", payload.Username, err)
		return writeError(ctx, err)
	}

	returnTo := ctx.Cookies(c.cfg.GetRejectedRouteKey())
	if returnTo != "" {
		deleteCookie(ctx, c.cfg, c.cfg.GetRejectedRouteKey())
	}

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Redirect: c.guard.AfterLogin(returnTo),
	})
}

func (c *Controller) SignOut(ctx router.Context) error {
	_, manager := c.cookies.resolve(ctx)
	manager.SignOut(ctx.Context())

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Redirect: c.guard.SignInRoute,
	})
}

func (c *Controller) SignUp(ctx router.Context) error {
	payload := &auth.SignUpInput{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	result, err := manager.SignUp(ctx.Context(), *payload)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, SessionResponse{
		Session: NewSessionView(manager.Snapshot()),
		SignUp:  &result,
	})
}

func (c *Controller) ConfirmSignUp(ctx router.Context) error {
	payload := &ConfirmPayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	if err := manager.ConfirmSignUp(ctx.Context(), payload.Username, payload.Code); err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Redirect: c.guard.SignInRoute,
	})
}

func (c *Controller) ResendCode(ctx router.Context) error {
	payload := &UsernamePayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	delivery, err := manager.ResendConfirmationCode(ctx.Context(), payload.Username)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Delivery: &delivery,
	})
}

func (c *Controller) ResetPassword(ctx router.Context) error {
	payload := &UsernamePayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	delivery, err := manager.ResetPassword(ctx.Context(), payload.Username)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Delivery: &delivery,
	})
}

func (c *Controller) ConfirmResetPassword(ctx router.Context) error {
	payload := &ResetConfirmPayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	if err := manager.ConfirmResetPassword(ctx.Context(), payload.Username, payload.Code, payload.NewPassword); err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(manager.Snapshot()),
		Redirect: c.guard.SignInRoute,
	})
}

func (c *Controller) ChangePassword(ctx router.Context) error {
	payload := &ChangePasswordPayload{}
	if err := bind(ctx, payload); err != nil {
		return writeError(ctx, err)
	}

	_, manager := c.cookies.resolve(ctx)
	if err := manager.UpdatePassword(ctx.Context(), payload.OldPassword, payload.NewPassword); err != nil {
		return writeError(ctx, err)
	}

	snap := manager.RefreshAuth(ctx.Context())

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session: NewSessionView(snap),
	})
}

func (c *Controller) DeleteAccount(ctx router.Context) error {
	sid, manager := c.cookies.resolve(ctx)
	if err := manager.DeleteUser(ctx.Context()); err != nil {
		return writeError(ctx, err)
	}

	snap := manager.Snapshot()
	c.cookies.sessions.Forget(sid)

	return ctx.JSON(http.StatusOK, SessionResponse{
		Session:  NewSessionView(snap),
		Redirect: c.guard.SignInRoute,
	})
}

func bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		richErr := errMalformedPayload.Clone()
		richErr.Source = err
		return richErr
	}
	return nil
}
