package web

import (
	"net/http"
	"strconv"

	"github.com/goliatone/go-router"
	"github.com/invencare/go-auth"
)

// LoadingRetryAfter is the Retry-After value (seconds) sent while a session
// is still being resolved.
const LoadingRetryAfter = 1

// Guard runs auth.RouteGuard in front of go-router handlers.
type Guard struct {
	guard   auth.RouteGuard
	cookies sessionCookies
	cfg     Config
	Logger  auth.Logger
}

func NewGuard(sessions Sessions, cfg Config) *Guard {
	return &Guard{
		guard: auth.NewRouteGuard(
			cfg.GetSignInRoute(),
			cfg.GetDefaultRoute(),
			auth.ParseRedirectPolicy(cfg.GetRedirectPolicy()),
		),
		cookies: sessionCookies{sessions: sessions, cfg: cfg},
		cfg:     cfg,
		Logger:  nopLogger{},
	}
}

// RouteGuard exposes the decision logic.
func (g *Guard) RouteGuard() auth.RouteGuard {
	return g.guard
}

func (g *Guard) Protected(minRole ...auth.Role) router.MiddlewareFunc {
	return g.Require(auth.Protected(minRole...))
}

func (g *Guard) GuestOnly() router.MiddlewareFunc {
	return g.Require(auth.GuestOnly())
}

// Require gates a handler on route.
func (g *Guard) Require(route auth.Route) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			_, manager := g.cookies.resolve(ctx)
			snap := manager.Snapshot()
			requested := ctx.OriginalURL()

			decision := g.guard.Decide(snap, route, requested)
			switch decision.Action {
			case auth.ActionLoading:
				ctx.SetHeader("Retry-After", strconv.Itoa(LoadingRetryAfter))
				return ctx.JSON(http.StatusAccepted, NewSessionView(snap))

			case auth.ActionRedirect:
				if decision.ReturnTo != "" {
					g.Logger.Info("remembering rejected route %s", decision.ReturnTo)
					setShortCookie(ctx, g.cfg, g.cfg.GetRejectedRouteKey(), decision.ReturnTo)
				}
				return ctx.Redirect(decision.Location, http.StatusSeeOther)

			case auth.ActionForbidden:
				g.Logger.Warn("role %s denied on %s", snap.Role(), requested)
				return writeError(ctx, ErrForbidden)
			}

			ctx.Locals(SnapshotKey, snap)
			return next(ctx)
		}
	}
}

// SnapshotFrom returns the snapshot stored by the guard.
func SnapshotFrom(ctx router.Context) (auth.SessionSnapshot, bool) {
	snap, ok := ctx.Locals(SnapshotKey).(auth.SessionSnapshot)
	return snap, ok
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
