package auth

import "strings"

// SessionStatus is the state of the authentication state machine.
type SessionStatus string

const (
	StatusUnauthenticated     SessionStatus = "unauthenticated"
	StatusAuthenticating      SessionStatus = "authenticating"
	StatusAuthenticated       SessionStatus = "authenticated"
	StatusAuthError           SessionStatus = "auth_error"
	StatusPendingConfirmation SessionStatus = "pending_confirmation"
)

func (s SessionStatus) String() string {
	return string(s)
}

// AccountStatus is the provider stored account status attribute.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
	AccountPending   AccountStatus = "pending"
)

// ParseAccountStatus normalizes the raw attribute. An empty value means the
// account was never gated and is treated as active.
func ParseAccountStatus(raw string) AccountStatus {
	s := AccountStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return AccountActive
	}
	return s
}

// Blocked reports whether the status forbids an authenticated session.
func (s AccountStatus) Blocked() bool {
	switch s {
	case AccountInactive, AccountSuspended, AccountPending:
		return true
	default:
		return false
	}
}
