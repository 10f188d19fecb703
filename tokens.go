package auth

import (
	"context"
)

// IDToken returns the ID token of the session, or "" when there is none.
// Expired tokens are refreshed through the provider without waiting for an
// attempt in flight; a failed refresh yields "".
func (m *SessionManager) IDToken(ctx context.Context) string {
	return m.currentTokens(ctx).IDToken
}

// AccessToken returns the access token of the session, or "" when there is none.
func (m *SessionManager) AccessToken(ctx context.Context) string {
	return m.currentTokens(ctx).AccessToken
}

func (m *SessionManager) currentTokens(ctx context.Context) Tokens {
	m.mu.RLock()
	if m.state.status != StatusAuthenticated || m.state.tokens == nil {
		m.mu.RUnlock()
		return Tokens{}
	}
	tokens := *m.state.tokens
	gen := m.generation
	var identity UserIdentity
	if m.state.identity != nil {
		identity = *m.state.identity
	}
	m.mu.RUnlock()

	if !tokens.Expired(m.now(), m.refreshSkew) {
		return tokens
	}

	// without a refresh token the last known bundle is all we have; the
	// backend answers 401 and the transport signs out.
	if tokens.RefreshToken == "" {
		return tokens
	}

	v, err, _ := m.refreshGroup.Do(tokens.RefreshToken, func() (any, error) {
		return m.provider.FetchSession(ctx, tokens)
	})
	if err != nil {
		m.logger.Warn("token refresh failed: %v", err)
		m.emit(ctx, ActivityEventTokenRefreshFailure, identity, map[string]any{
			"error": ProviderMessage(err),
		})
		return Tokens{}
	}

	fresh, _ := v.(Tokens)
	if fresh.IsZero() {
		return Tokens{}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}

	if !m.storeRefreshed(gen, tokens, fresh) {
		// the session moved on while refreshing
		return Tokens{}
	}

	m.saveCredentials(ctx, fresh)
	m.emit(ctx, ActivityEventTokenRefreshed, identity, nil)
	return fresh
}

// storeRefreshed swaps the token bundle in place when the session still holds
// the bundle that was refreshed.
func (m *SessionManager) storeRefreshed(gen uint64, previous, fresh Tokens) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state.status != StatusAuthenticated || m.state.tokens == nil {
		return false
	}
	if m.state.tokens.RefreshToken != previous.RefreshToken {
		return false
	}

	m.state.tokens = &fresh
	return true
}
