package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityProvider wraps the hosted identity service. Implementations hold no
// session state of their own: every call that acts on behalf of a signed in
// user receives the token bundle owned by the SessionManager.
type IdentityProvider interface {
	SignUp(ctx context.Context, input SignUpInput) (SignUpResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	ResendConfirmationCode(ctx context.Context, username string) (CodeDelivery, error)
	SignIn(ctx context.Context, username, password string) (Tokens, error)
	SignOut(ctx context.Context, tokens Tokens) error
	GetCurrentUser(ctx context.Context, tokens Tokens) (UserIdentity, error)
	FetchUserAttributes(ctx context.Context, tokens Tokens) (Attributes, error)
	// FetchSession returns a usable token bundle, refreshing it when expired.
	FetchSession(ctx context.Context, tokens Tokens) (Tokens, error)
	ResetPassword(ctx context.Context, username string) (CodeDelivery, error)
	ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error
	UpdatePassword(ctx context.Context, tokens Tokens, oldPassword, newPassword string) error
	DeleteUser(ctx context.Context, tokens Tokens) error
}

// Tokens is the opaque credential bundle issued by the identity provider.
type Tokens struct {
	IDToken      string    `json:"id_token" yaml:"id_token"`
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at" yaml:"expires_at"`
}

// IsZero reports whether the bundle carries no usable token.
func (t Tokens) IsZero() bool {
	return t.IDToken == "" && t.AccessToken == ""
}

// Expired reports whether the bundle expires within skew of now. A bundle
// without an expiry never expires.
func (t Tokens) Expired(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(t.ExpiresAt)
}

func (t Tokens) String() string {
	return fmt.Sprintf("tokens(id=%s access=%s refresh=%t exp=%s)",
		redact(t.IDToken), redact(t.AccessToken), t.RefreshToken != "", t.ExpiresAt.Format(time.RFC3339))
}

func redact(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// UserIdentity is the stable identifier and display name of a signed in user.
type UserIdentity struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// SignUpInput holds the values required to register an account.
type SignUpInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
}

// SignUpResult reports the outcome of a registration.
type SignUpResult struct {
	UserID               string       `json:"user_id,omitempty"`
	ConfirmationRequired bool         `json:"confirmation_required"`
	Delivery             CodeDelivery `json:"delivery"`
}

// CodeDelivery describes where a confirmation or reset code was sent.
type CodeDelivery struct {
	Destination string `json:"destination,omitempty"`
	Medium      string `json:"medium,omitempty"`
	Attribute   string `json:"attribute,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
