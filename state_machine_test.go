package auth_test

import (
	"testing"

	"github.com/invencare/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to auth.SessionStatus
		allowed  bool
	}{
		{auth.StatusAuthenticating, auth.StatusAuthenticated, true},
		{auth.StatusAuthenticating, auth.StatusUnauthenticated, true},
		{auth.StatusAuthenticating, auth.StatusAuthError, true},
		{auth.StatusAuthenticating, auth.StatusPendingConfirmation, true},
		{auth.StatusUnauthenticated, auth.StatusAuthenticating, true},
		{auth.StatusUnauthenticated, auth.StatusAuthenticated, false},
		{auth.StatusAuthError, auth.StatusAuthenticated, false},
		{auth.StatusPendingConfirmation, auth.StatusUnauthenticated, true},
		{auth.StatusPendingConfirmation, auth.StatusAuthenticated, false},
		{auth.StatusAuthenticated, auth.StatusAuthError, false},
		{auth.StatusAuthenticated, auth.StatusUnauthenticated, true},
		{auth.StatusAuthenticated, auth.StatusAuthenticated, true},
		{auth.SessionStatus("unknown"), auth.StatusAuthenticated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, auth.CanTransition(tt.from, tt.to))
		})
	}
}
