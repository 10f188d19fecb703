package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/invencare/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestProviderMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "provider error",
			err:      &auth.ProviderError{Code: "NotAuthorizedException", Message: "Incorrect username or password."},
			expected: "Incorrect username or password.",
		},
		{
			name:     "wrapped provider error",
			err:      fmt.Errorf("sign in: %w", &auth.ProviderError{Message: "User does not exist."}),
			expected: "User does not exist.",
		},
		{
			name:     "structured error",
			err:      auth.ErrNotAuthenticated,
			expected: "no authenticated session",
		},
		{
			name:     "plain error",
			err:      errors.New(" network unreachable "),
			expected: "network unreachable",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.ProviderMessage(tt.err))
		})
	}
}

func TestProviderErrorClassification(t *testing.T) {
	err := &auth.ProviderError{Op: "GetUser", Message: "Access Token has expired", Kind: auth.ErrNoSession}
	assert.True(t, auth.IsNoSession(err))
	assert.False(t, auth.IsUserNotConfirmed(err))

	wrapped := fmt.Errorf("check session: %w", err)
	assert.True(t, auth.IsNoSession(wrapped))

	plain := &auth.ProviderError{Message: "boom", Err: errors.New("transport")}
	assert.False(t, auth.IsNoSession(plain))
	assert.Equal(t, "boom", plain.Error())
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, goerrors.IsCategory(auth.ErrBusy, goerrors.CategoryConflict))
	assert.True(t, goerrors.IsCategory(auth.ErrNotAuthenticated, goerrors.CategoryAuth))
	assert.True(t, goerrors.IsCategory(auth.ErrAccountNotActive, goerrors.CategoryAuthz))
	assert.True(t, auth.IsAccountNotActive(auth.ErrAccountNotActive))
	assert.False(t, auth.IsAccountNotActive(auth.ErrBusy))
	assert.False(t, auth.HasTextCode(errors.New("plain"), auth.TextCodeBusy))
}
