package web

import "time"

// Config is read by the guard and controller.
type Config interface {
	GetSessionCookie() string
	GetSessionTTL() time.Duration
	GetRejectedRouteKey() string
	GetSignInRoute() string
	GetDefaultRoute() string
	GetRedirectPolicy() string
	GetSecureCookies() bool
	GetCSRFSecret() string
}

// Settings is the plain Config implementation.
type Settings struct {
	SessionCookie    string        `yaml:"session_cookie"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	RejectedRouteKey string        `yaml:"rejected_route_key"`
	SignInRoute      string        `yaml:"sign_in_route"`
	DefaultRoute     string        `yaml:"default_route"`
	RedirectPolicy   string        `yaml:"redirect_policy"`
	SecureCookies    bool          `yaml:"secure_cookies"`
	CSRFSecret       string        `yaml:"csrf_secret"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SessionCookie:    "sid",
		SessionTTL:       30 * time.Minute,
		RejectedRouteKey: "rejected_route",
		SignInRoute:      "/login",
		DefaultRoute:     "/dashboard",
		RedirectPolicy:   "return_to_origin",
		SecureCookies:    true,
	}
}

func (s Settings) GetSessionCookie() string {
	if s.SessionCookie == "" {
		return "sid"
	}
	return s.SessionCookie
}

func (s Settings) GetSessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return 30 * time.Minute
	}
	return s.SessionTTL
}

func (s Settings) GetRejectedRouteKey() string {
	if s.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return s.RejectedRouteKey
}

func (s Settings) GetSignInRoute() string {
	return s.SignInRoute
}

func (s Settings) GetDefaultRoute() string {
	return s.DefaultRoute
}

func (s Settings) GetRedirectPolicy() string {
	return s.RedirectPolicy
}

func (s Settings) GetSecureCookies() bool {
	return s.SecureCookies
}

func (s Settings) GetCSRFSecret() string {
	return s.CSRFSecret
}
