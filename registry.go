package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultRegistrySize = 1024
	DefaultRegistryTTL  = 30 * time.Minute
)

// ManagerFactory builds the manager for a browser session id, typically
// binding a CredentialStore keyed by that id.
type ManagerFactory func(sessionID string) *SessionManager

// Registry keeps one SessionManager per browser session. Entries expire after
// the TTL; an evicted session is rebuilt from its credential store on the next
// request.
type Registry struct {
	factory  ManagerFactory
	managers *expirable.LRU[string, *SessionManager]
	mu       sync.Mutex
	logger   Logger
}

type RegistryOption func(*Registry)

func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(factory ManagerFactory, size int, ttl time.Duration, opts ...RegistryOption) *Registry {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}

	r := &Registry{
		factory: factory,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.managers = expirable.NewLRU[string, *SessionManager](size, func(id string, _ *SessionManager) {
		r.logger.Debug("session manager evicted: %s", id)
	}, ttl)

	return r
}

// Get returns the manager for sessionID, creating it and running the first
// session check when missing.
func (r *Registry) Get(ctx context.Context, sessionID string) *SessionManager {
	if m, ok := r.managers.Get(sessionID); ok {
		return m
	}

	r.mu.Lock()
	m, ok := r.managers.Get(sessionID)
	if !ok {
		m = r.factory(sessionID)
		r.managers.Add(sessionID, m)
	}
	r.mu.Unlock()

	if !ok {
		m.CheckSession(ctx)
	}
	return m
}

// Peek returns the manager for sessionID without creating one.
func (r *Registry) Peek(sessionID string) (*SessionManager, bool) {
	return r.managers.Peek(sessionID)
}

// Forget drops the manager for sessionID.
func (r *Registry) Forget(sessionID string) {
	r.managers.Remove(sessionID)
}

func (r *Registry) Len() int {
	return r.managers.Len()
}
