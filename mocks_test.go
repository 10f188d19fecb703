package auth_test

import (
	"context"
	"sync"

	"github.com/invencare/go-auth"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, input auth.SignUpInput) (auth.SignUpResult, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(auth.SignUpResult), args.Error(1)
}

func (m *MockIdentityProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	args := m.Called(ctx, username, code)
	return args.Error(0)
}

func (m *MockIdentityProvider) ResendConfirmationCode(ctx context.Context, username string) (auth.CodeDelivery, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(auth.CodeDelivery), args.Error(1)
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, username, password string) (auth.Tokens, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.Tokens), args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, tokens auth.Tokens) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

func (m *MockIdentityProvider) GetCurrentUser(ctx context.Context, tokens auth.Tokens) (auth.UserIdentity, error) {
	args := m.Called(ctx, tokens)
	return args.Get(0).(auth.UserIdentity), args.Error(1)
}

func (m *MockIdentityProvider) FetchUserAttributes(ctx context.Context, tokens auth.Tokens) (auth.Attributes, error) {
	args := m.Called(ctx, tokens)
	return args.Get(0).(auth.Attributes), args.Error(1)
}

func (m *MockIdentityProvider) FetchSession(ctx context.Context, tokens auth.Tokens) (auth.Tokens, error) {
	args := m.Called(ctx, tokens)
	return args.Get(0).(auth.Tokens), args.Error(1)
}

func (m *MockIdentityProvider) ResetPassword(ctx context.Context, username string) (auth.CodeDelivery, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(auth.CodeDelivery), args.Error(1)
}

func (m *MockIdentityProvider) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	args := m.Called(ctx, username, code, newPassword)
	return args.Error(0)
}

func (m *MockIdentityProvider) UpdatePassword(ctx context.Context, tokens auth.Tokens, oldPassword, newPassword string) error {
	args := m.Called(ctx, tokens, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockIdentityProvider) DeleteUser(ctx context.Context, tokens auth.Tokens) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

// MockLegacyFlagPurger implements auth.LegacyFlagPurger
type MockLegacyFlagPurger struct {
	mock.Mock
}

func (m *MockLegacyFlagPurger) PurgeLegacyFlags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// nopLogger silences manager output in tests
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
