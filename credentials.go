package auth

import (
	"context"
	"sync"
)

// CredentialStore persists the token bundle of a browser session across
// manager instances. A zero Tokens value with a nil error means nothing is
// stored.
type CredentialStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}

// LegacyFlagPurger removes the flags written by the old demo authentication
// flow. The flags are never read.
type LegacyFlagPurger interface {
	PurgeLegacyFlags(ctx context.Context) ([]string, error)
}

// LegacyDemoFlags are the keys the demo flow used to fake a signed in user.
var LegacyDemoFlags = []string{
	"isAuthenticated",
	"currentUser",
	"userRole",
	"demoMode",
}

// MemoryCredentialStore keeps tokens in process memory.
type MemoryCredentialStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Load(context.Context) (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryCredentialStore) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryCredentialStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}
