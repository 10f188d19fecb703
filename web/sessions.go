package web

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/invencare/go-auth"
)

// Sessions resolves the manager of a browser session; *auth.Registry
// implements it.
type Sessions interface {
	Get(ctx context.Context, sessionID string) *auth.SessionManager
	Forget(sessionID string)
}

// SnapshotKey is the Locals key holding the auth.SessionSnapshot of a request
// that passed the guard.
const SnapshotKey = "auth_session"

type sessionCookies struct {
	sessions Sessions
	cfg      Config
}

// resolve returns the browser session id and its manager, issuing a new id
// when the cookie is missing or malformed.
func (s sessionCookies) resolve(ctx router.Context) (string, *auth.SessionManager) {
	sid := ctx.Cookies(s.cfg.GetSessionCookie())
	if _, err := uuid.Parse(sid); err != nil {
		sid = uuid.NewString()
	}
	// refreshed on every request so an active session keeps its cookie
	s.setCookie(ctx, sid, time.Now().Add(s.cfg.GetSessionTTL()))
	return sid, s.sessions.Get(ctx.Context(), sid)
}

func (s sessionCookies) setCookie(ctx router.Context, sid string, expires time.Time) {
	ctx.Cookie(&router.Cookie{
		Name:     s.cfg.GetSessionCookie(),
		Value:    sid,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func setShortCookie(ctx router.Context, cfg Config, name, value string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func deleteCookie(ctx router.Context, cfg Config, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	Status          auth.SessionStatus `json:"status"`
	Loading         bool               `json:"loading"`
	Error           string             `json:"error,omitempty"`
	PendingUsername string             `json:"pending_username,omitempty"`
	User            *UserView          `json:"user,omitempty"`
}

type UserView struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Role        auth.Role `json:"role"`
	AllStores   bool      `json:"all_stores"`
	Stores      []string  `json:"stores"`
}

// NewSessionView renders snap without tokens.
func NewSessionView(snap auth.SessionSnapshot) SessionView {
	view := SessionView{
		Status:          snap.Status,
		Loading:         snap.Loading,
		Error:           snap.Error,
		PendingUsername: snap.PendingUsername,
	}
	if snap.IsAuthenticated() && snap.Identity != nil {
		access := snap.StoreAccess()
		view.User = &UserView{
			UserID:      snap.Identity.UserID,
			Username:    snap.Identity.Username,
			DisplayName: snap.Identity.DisplayName,
			Email:       snap.Attributes.Email(),
			Role:        snap.Role(),
			AllStores:   access.All(),
			Stores:      access.Stores(),
		}
	}
	return view
}
