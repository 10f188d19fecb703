package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput        = "INVALID_AUTH_INPUT"
	TextCodeWeakPassword        = "WEAK_PASSWORD"
	TextCodeProviderRejected    = "PROVIDER_REJECTED"
	TextCodeAccountNotActive    = "ACCOUNT_NOT_ACTIVE"
	TextCodeBusy                = "AUTH_ATTEMPT_IN_FLIGHT"
	TextCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	TextCodeInvalidTransition   = "INVALID_SESSION_TRANSITION"
	TextCodeNoSession           = "NO_SESSION"
	TextCodeUserNotConfirmed    = "USER_NOT_CONFIRMED"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeSuperseded          = "AUTH_ATTEMPT_SUPERSEDED"
	TextCodeUnauthorizedRequest = "UNAUTHORIZED_RESPONSE"
)

// ErrBusy is returned when an authentication attempt is already in flight and
// the manager rejects concurrent attempts.
var ErrBusy = goerrors.New("an authentication attempt is already in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeBusy).
	WithCode(goerrors.CodeConflict)

// ErrNotAuthenticated is returned by operations that need a signed in user.
var ErrNotAuthenticated = goerrors.New("no authenticated session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotActive is returned when valid credentials belong to an account
// whose status forbids a session.
var ErrAccountNotActive = goerrors.New("account is not active", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidTransition reports a state change the session graph does not allow.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeInternal)

// ErrSuperseded is returned when a newer attempt or a sign out resolved while
// this attempt was in flight; its result was discarded.
var ErrSuperseded = goerrors.New("authentication attempt was superseded", goerrors.CategoryConflict).
	WithTextCode(TextCodeSuperseded).
	WithCode(goerrors.CodeConflict)

// ErrNoSession is reported by providers when there is no current user.
var ErrNoSession = goerrors.New("no current session", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotConfirmed classifies provider rejections for unconfirmed accounts.
var ErrUserNotConfirmed = goerrors.New("user is not confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotConfirmed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials classifies provider rejections for bad credentials.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorizedResponse is reported when the REST backend answers 401.
var ErrUnauthorizedResponse = goerrors.New("backend rejected the session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorizedRequest).
	WithCode(goerrors.CodeUnauthorized)

// ProviderError carries the identity provider's failure. Message is the
// provider's human readable text and is surfaced to users verbatim.
type ProviderError struct {
	Op      string
	Code    string
	Message string
	// Kind optionally classifies the failure (ErrNoSession, ErrUserNotConfirmed, ...)
	Kind error
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "identity provider error"
}

func (e *ProviderError) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ProviderMessage extracts the human readable message of a failure, preferring
// the provider's own text.
func ProviderMessage(err error) string {
	if err == nil {
		return ""
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Error()
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}

	return strings.TrimSpace(err.Error())
}

// IsNoSession reports whether err means there is no current user.
func IsNoSession(err error) bool {
	return errors.Is(err, ErrNoSession)
}

// IsUserNotConfirmed reports whether err rejects an unconfirmed account.
func IsUserNotConfirmed(err error) bool {
	return errors.Is(err, ErrUserNotConfirmed)
}

// providerRejected keeps err as the source so classification kinds such as
// ErrUserNotConfirmed stay reachable through errors.Is.
func providerRejected(err error) *goerrors.Error {
	richErr := goerrors.New(ProviderMessage(err), goerrors.CategoryAuth).
		WithTextCode(TextCodeProviderRejected).
		WithCode(goerrors.CodeUnauthorized)
	richErr.Source = err
	return richErr
}

func accountNotActive(status AccountStatus) error {
	richErr := ErrAccountNotActive.Clone()
	richErr.Message = "account is " + string(status)
	return richErr.WithMetadata(map[string]any{"status": string(status)})
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsAccountNotActive reports whether err was raised by the account status gate.
func IsAccountNotActive(err error) bool {
	return HasTextCode(err, TextCodeAccountNotActive)
}
