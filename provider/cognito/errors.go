package cognito

import (
	"errors"

	"github.com/aws/smithy-go"
	goerrors "github.com/goliatone/go-errors"
	"github.com/invencare/go-auth"
)

const (
	TextCodeTokenInvalid      = "ID_TOKEN_INVALID"
	TextCodeTokenExpired      = "ID_TOKEN_EXPIRED"
	TextCodeChallengeRequired = "AUTH_CHALLENGE_REQUIRED"
)

// ErrTokenInvalid is returned when an ID token fails verification.
var ErrTokenInvalid = goerrors.New("id token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when an ID token is past its expiry.
var ErrTokenExpired = goerrors.New("id token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrChallengeRequired is returned when the pool answers sign in with a
// challenge (MFA, new password) the dashboard does not support.
var ErrChallengeRequired = goerrors.New("sign in requires an unsupported challenge", goerrors.CategoryAuth).
	WithTextCode(TextCodeChallengeRequired).
	WithCode(goerrors.CodeUnauthorized)

// operations acting on an existing session; a rejection there means the
// session is gone rather than bad credentials.
var sessionOps = map[string]bool{
	"GetUser":       true,
	"FetchSession":  true,
	"GlobalSignOut": true,
	"DeleteUser":    true,
}

// mapError turns SDK failures into auth.ProviderError carrying the service
// message, classified for the session manager.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	perr := &auth.ProviderError{
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		perr.Code = apiErr.ErrorCode()
		if msg := apiErr.ErrorMessage(); msg != "" {
			perr.Message = msg
		}
	}

	switch perr.Code {
	case "UserNotConfirmedException":
		perr.Kind = auth.ErrUserNotConfirmed
	case "NotAuthorizedException", "UserNotFoundException":
		if sessionOps[op] {
			perr.Kind = auth.ErrNoSession
		} else {
			perr.Kind = auth.ErrInvalidCredentials
		}
	}

	return perr
}

func noSession(op, message string, cause error) error {
	return &auth.ProviderError{
		Op:      op,
		Message: message,
		Kind:    auth.ErrNoSession,
		Err:     cause,
	}
}

func normalizeVerificationError(err error, expired bool) error {
	clone := ErrTokenInvalid.Clone()
	if expired {
		clone = ErrTokenExpired.Clone()
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "cognito",
		"cause":    err.Error(),
	})
}
