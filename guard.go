package auth

import (
	"net/url"
	"strings"
)

// RouteKind classifies dashboard routes for the guard.
type RouteKind string

const (
	RoutePublic    RouteKind = "public"
	RouteProtected RouteKind = "protected"
	// RouteGuestOnly routes (sign in, sign up) are hidden from signed in users.
	RouteGuestOnly RouteKind = "guest_only"
)

// RedirectPolicy decides where a successful sign in lands.
type RedirectPolicy string

const (
	// RedirectReturnToOrigin sends the user back to the protected location
	// that triggered the sign in.
	RedirectReturnToOrigin RedirectPolicy = "return_to_origin"
	// RedirectAlwaysDefault always lands on the default route.
	RedirectAlwaysDefault RedirectPolicy = "always_default"
)

// ParseRedirectPolicy falls back to RedirectReturnToOrigin.
func ParseRedirectPolicy(raw string) RedirectPolicy {
	switch RedirectPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case RedirectAlwaysDefault:
		return RedirectAlwaysDefault
	default:
		return RedirectReturnToOrigin
	}
}

type GuardAction string

const (
	ActionRender    GuardAction = "render"
	ActionLoading   GuardAction = "loading"
	ActionRedirect  GuardAction = "redirect"
	ActionForbidden GuardAction = "forbidden"
)

// Decision is the outcome of a guard check.
type Decision struct {
	Action   GuardAction
	Location string
	// ReturnTo is the location to come back to after signing in.
	ReturnTo string
}

// Route describes a guarded route.
type Route struct {
	Kind    RouteKind
	MinRole Role
}

func Public() Route {
	return Route{Kind: RoutePublic}
}

func Protected(minRole ...Role) Route {
	r := Route{Kind: RouteProtected}
	if len(minRole) > 0 {
		r.MinRole = minRole[0]
	}
	return r
}

func GuestOnly() Route {
	return Route{Kind: RouteGuestOnly}
}

// RouteGuard gates navigation on the session snapshot.
type RouteGuard struct {
	SignInRoute  string
	DefaultRoute string
	Policy       RedirectPolicy
}

func NewRouteGuard(signInRoute, defaultRoute string, policy RedirectPolicy) RouteGuard {
	if signInRoute == "" {
		signInRoute = "/login"
	}
	if defaultRoute == "" {
		defaultRoute = "/"
	}
	if policy == "" {
		policy = RedirectReturnToOrigin
	}
	return RouteGuard{
		SignInRoute:  signInRoute,
		DefaultRoute: defaultRoute,
		Policy:       policy,
	}
}

// Decide returns what to do with a navigation to requested.
func (g RouteGuard) Decide(snap SessionSnapshot, route Route, requested string) Decision {
	if snap.Status == StatusAuthenticating {
		return Decision{Action: ActionLoading}
	}

	switch route.Kind {
	case RouteProtected:
		if !snap.IsAuthenticated() {
			d := Decision{Action: ActionRedirect, Location: g.SignInRoute}
			if g.Policy != RedirectAlwaysDefault && isLocalPath(requested) {
				d.ReturnTo = requested
			}
			return d
		}
		if route.MinRole != "" && !snap.Role().IsAtLeast(route.MinRole) {
			return Decision{Action: ActionForbidden}
		}
	case RouteGuestOnly:
		if snap.IsAuthenticated() {
			return Decision{Action: ActionRedirect, Location: g.DefaultRoute}
		}
	}

	return Decision{Action: ActionRender}
}

// AfterLogin returns the landing route for a successful sign in.
func (g RouteGuard) AfterLogin(returnTo string) string {
	if g.Policy == RedirectAlwaysDefault || !isLocalPath(returnTo) {
		return g.DefaultRoute
	}
	if returnTo == g.SignInRoute {
		return g.DefaultRoute
	}
	return returnTo
}

// isLocalPath rejects absolute and protocol relative URLs so a remembered
// location cannot send the user off site.
func isLocalPath(loc string) bool {
	if loc == "" || !strings.HasPrefix(loc, "/") || strings.HasPrefix(loc, "//") || strings.HasPrefix(loc, "/\\") {
		return false
	}
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
