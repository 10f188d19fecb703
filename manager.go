package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshSkew is how early tokens are treated as expired.
const DefaultRefreshSkew = 30 * time.Second

// SessionManager is the authentication state machine. It owns the session of
// a single browser session and is the only writer of it.
//
// Sign in, sign up and session checks are attempts: only one runs at a time.
// Sign out and account deletion never wait for an attempt; they invalidate it
// so its result is discarded.
type SessionManager struct {
	provider         IdentityProvider
	credentials      CredentialStore
	legacy           LegacyFlagPurger
	logger           Logger
	activitySink     ActivitySink
	policy           PasswordPolicy
	now              func() time.Time
	refreshSkew      time.Duration
	rejectConcurrent bool

	attempt chan struct{}

	mu         sync.RWMutex
	state      session
	generation uint64

	subMu       sync.Mutex
	subscribers map[uint64]func(SessionSnapshot)
	nextSubID   uint64

	notifyMu  sync.Mutex
	delivered uint64

	refreshGroup singleflight.Group
}

// ManagerOption customizes SessionManager construction.
type ManagerOption func(*SessionManager)

func WithLogger(logger Logger) ManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithCredentialStore persists tokens outside the manager.
func WithCredentialStore(store CredentialStore) ManagerOption {
	return func(m *SessionManager) {
		if store != nil {
			m.credentials = store
		}
	}
}

// WithLegacyFlagPurger removes the demo authentication flags on every
// session check.
func WithLegacyFlagPurger(purger LegacyFlagPurger) ManagerOption {
	return func(m *SessionManager) {
		m.legacy = purger
	}
}

func WithPasswordPolicy(policy PasswordPolicy) ManagerOption {
	return func(m *SessionManager) {
		m.policy = policy
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

func WithRefreshSkew(skew time.Duration) ManagerOption {
	return func(m *SessionManager) {
		if skew >= 0 {
			m.refreshSkew = skew
		}
	}
}

// WithRejectConcurrent makes attempts fail with ErrBusy instead of queueing
// behind the attempt in flight.
func WithRejectConcurrent() ManagerOption {
	return func(m *SessionManager) {
		m.rejectConcurrent = true
	}
}

// NewSessionManager returns a manager in the Authenticating state with
// Loading set. Call CheckSession to resolve it.
func NewSessionManager(provider IdentityProvider, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		provider:     provider,
		credentials:  NewMemoryCredentialStore(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		policy:       DefaultPasswordPolicy,
		now:          time.Now,
		refreshSkew:  DefaultRefreshSkew,
		attempt:      make(chan struct{}, 1),
		subscribers:  map[uint64]func(SessionSnapshot){},
		state: session{
			status:  StatusAuthenticating,
			loading: true,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Snapshot returns a copy of the current session.
func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.snapshot()
}

// Subscribe registers fn to receive a snapshot after every committed change.
// Callbacks run on the committing goroutine, outside the state lock, and never
// see an older version after a newer one.
func (m *SessionManager) Subscribe(fn func(SessionSnapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	m.subMu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
		})
	}
}

// CheckSession resolves the session from persisted credentials. It never
// reports provider failures: any failure leaves the session Unauthenticated
// with no error message. A signed in session stays Authenticated, its tokens
// readable, while it is re-checked.
func (m *SessionManager) CheckSession(ctx context.Context) SessionSnapshot {
	release, gen, err := m.beginAttempt(ctx)
	if err != nil {
		m.logger.Warn("CheckSession skipped: %v", err)
		return m.Snapshot()
	}
	defer release()

	m.purgeLegacyFlags(ctx)

	tokens := m.knownTokens(ctx)
	if tokens.IsZero() {
		m.logger.Debug("CheckSession found no stored credentials")
		_ = m.commit(ctx, gen, signedOut)
		return m.Snapshot()
	}

	if err := m.commit(ctx, gen, func(s *session) {
		if s.status != StatusAuthenticated {
			s.status = StatusAuthenticating
		}
		s.err = ""
	}); err != nil {
		return m.Snapshot()
	}

	loaded, err := m.loadSession(ctx, tokens)
	if err != nil {
		if IsNoSession(err) {
			m.logger.Debug("CheckSession no current user: %v", err)
			m.clearCredentials(ctx)
		} else {
			m.logger.Warn("CheckSession could not restore session: %v", err)
		}
		_ = m.commit(ctx, gen, signedOut)
		return m.Snapshot()
	}

	if status := loaded.attributes.AccountStatus(); status.Blocked() {
		_ = m.rejectBlocked(ctx, gen, loaded, status)
		return m.Snapshot()
	}

	if loaded.tokens != tokens {
		m.saveCredentials(ctx, loaded.tokens)
	}

	if err := m.commit(ctx, gen, func(s *session) {
		s.authenticate(loaded)
	}); err != nil {
		m.discard(ctx, loaded.tokens)
		return m.Snapshot()
	}

	m.emit(ctx, ActivityEventSessionRestored, loaded.identity, nil)
	return m.Snapshot()
}

// RefreshAuth re-runs the session check, picking up attribute changes such as
// a new role or store assignment.
func (m *SessionManager) RefreshAuth(ctx context.Context) SessionSnapshot {
	return m.CheckSession(ctx)
}

// SignIn authenticates username. On success identity, attributes and tokens
// are committed together. Provider rejections move the session to AuthError
// with the provider's message and end any session the attempt replaced;
// accounts whose status forbids a session get ErrAccountNotActive and are
// signed out.
func (m *SessionManager) SignIn(ctx context.Context, username, password string) error {
	if err := requireField("username", username); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return err
	}
	if err := requireField("password", password); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return err
	}

	release, gen, err := m.beginAttempt(ctx)
	if err != nil {
		return err
	}
	defer release()

	previous, _, _ := m.authenticatedTokens()

	if err := m.commit(ctx, gen, func(s *session) {
		s.status = StatusAuthenticating
		s.err = ""
	}); err != nil {
		return err
	}

	tokens, err := m.provider.SignIn(ctx, username, password)
	if err != nil {
		m.logger.Warn("SignIn rejected for %s: %v", username, err)
		m.failAttempt(ctx, gen, username, err, previous)
		m.emit(ctx, ActivityEventLoginFailure, UserIdentity{Username: username}, map[string]any{
			"error": ProviderMessage(err),
		})
		return providerRejected(err)
	}

	loaded, err := m.loadIdentity(ctx, tokens)
	if err != nil {
		m.logger.Error("SignIn could not load identity for %s: %v", username, err)
		if serr := m.provider.SignOut(ctx, tokens); serr != nil {
			m.logger.Warn("SignIn provider sign out failed: %v", serr)
		}
		m.failAttempt(ctx, gen, username, err, previous)
		return providerRejected(err)
	}

	if status := loaded.attributes.AccountStatus(); status.Blocked() {
		if previous.AccessToken != loaded.tokens.AccessToken {
			m.retire(ctx, gen, previous)
		}
		return m.rejectBlocked(ctx, gen, loaded, status)
	}

	m.saveCredentials(ctx, loaded.tokens)

	if err := m.commit(ctx, gen, func(s *session) {
		s.authenticate(loaded)
	}); err != nil {
		m.discard(ctx, loaded.tokens)
		return err
	}

	m.emit(ctx, ActivityEventLoginSuccess, loaded.identity, nil)
	return nil
}

// SignOut ends the session. It never waits for an attempt in flight and
// always ends Unauthenticated, even when the provider call fails.
func (m *SessionManager) SignOut(ctx context.Context) {
	tokens, identity, gen := m.invalidate()
	if tokens.IsZero() {
		tokens = m.storedTokens(ctx)
	}

	_ = m.commit(ctx, gen, func(s *session) {
		s.status = StatusAuthenticating
		s.err = ""
	})

	if !tokens.IsZero() {
		if err := m.provider.SignOut(ctx, tokens); err != nil {
			m.logger.Warn("SignOut provider call failed: %v", err)
		}
	}

	m.clearCredentialsFor(ctx, gen)

	_ = m.commit(ctx, gen, signedOut)

	m.emit(ctx, ActivityEventLogout, identity, nil)
}

func signedOut(s *session) {
	s.status = StatusUnauthenticated
	s.clear()
	s.err = ""
	s.loading = false
}

// beginAttempt takes the attempt slot and starts a new generation.
func (m *SessionManager) beginAttempt(ctx context.Context) (release func(), gen uint64, err error) {
	if m.rejectConcurrent {
		select {
		case m.attempt <- struct{}{}:
		default:
			return nil, 0, ErrBusy
		}
	} else {
		select {
		case m.attempt <- struct{}{}:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	m.generation++
	gen = m.generation
	m.mu.Unlock()

	return func() { <-m.attempt }, gen, nil
}

// invalidate starts a new generation so results of the attempt in flight are
// discarded, returning the tokens and identity it replaces.
func (m *SessionManager) invalidate() (Tokens, UserIdentity, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++

	var tokens Tokens
	if m.state.tokens != nil {
		tokens = *m.state.tokens
	}
	var identity UserIdentity
	if m.state.identity != nil {
		identity = *m.state.identity
	}
	return tokens, identity, m.generation
}

// commit applies mutate when gen is still current.
func (m *SessionManager) commit(ctx context.Context, gen uint64, mutate func(*session)) error {
	return m.apply(ctx, &gen, mutate)
}

// update applies mutate regardless of generation. Used by calls that are not
// attempts and only touch the error message or confirmation state.
func (m *SessionManager) update(ctx context.Context, mutate func(*session)) error {
	return m.apply(ctx, nil, mutate)
}

func (m *SessionManager) apply(ctx context.Context, gen *uint64, mutate func(*session)) error {
	m.mu.Lock()
	if gen != nil && *gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}

	from := m.state.status
	next := m.state.clone()
	mutate(&next)

	if err := checkTransition(from, next.status); err != nil {
		m.mu.Unlock()
		m.logger.Error("session transition refused: %v", err)
		return err
	}
	if err := next.normalize(); err != nil {
		m.mu.Unlock()
		m.logger.Error("session transition refused: %v", err)
		return err
	}

	next.version = m.state.version + 1
	m.state = next
	snap := next.snapshot()
	m.mu.Unlock()

	m.publish(snap)

	if from != snap.Status {
		m.emitTransition(ctx, from, snap)
	}
	return nil
}

func (m *SessionManager) publish(snap SessionSnapshot) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	if snap.Version <= m.delivered {
		return
	}
	m.delivered = snap.Version

	m.subMu.Lock()
	subs := make([]func(SessionSnapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *SessionManager) setError(ctx context.Context, message string) {
	_ = m.update(ctx, func(s *session) {
		s.err = message
	})
}

func (m *SessionManager) clearError(ctx context.Context) {
	_ = m.update(ctx, func(s *session) {
		s.err = ""
	})
}

// failAttempt records a rejected attempt. Unconfirmed accounts move to
// PendingConfirmation so the caller can collect the code. A session the
// attempt replaced is ended as well.
func (m *SessionManager) failAttempt(ctx context.Context, gen uint64, username string, cause error, previous Tokens) {
	message := ProviderMessage(cause)
	err := m.commit(ctx, gen, func(s *session) {
		s.clear()
		s.loading = false
		s.err = message
		if IsUserNotConfirmed(cause) {
			s.status = StatusPendingConfirmation
			s.pendingUsername = username
			return
		}
		s.status = StatusAuthError
	})
	if err == nil {
		m.retire(ctx, gen, previous)
	}
}

// retire signs out the bundle of a session that an attempt replaced and drops
// its stored credentials, so the next session check cannot restore it.
func (m *SessionManager) retire(ctx context.Context, gen uint64, previous Tokens) {
	if previous.IsZero() {
		return
	}
	if err := m.provider.SignOut(ctx, previous); err != nil {
		m.logger.Warn("replaced session provider sign out failed: %v", err)
	}
	m.clearCredentialsFor(ctx, gen)
}

// rejectBlocked signs the account out exactly once and leaves the session
// Unauthenticated. The block is a policy outcome, not a retryable error, so no
// message is stored on the session.
func (m *SessionManager) rejectBlocked(ctx context.Context, gen uint64, loaded loadedSession, status AccountStatus) error {
	m.logger.Warn("account %s blocked by status %s", loaded.identity.UserID, status)

	if err := m.provider.SignOut(ctx, loaded.tokens); err != nil {
		m.logger.Warn("blocked account provider sign out failed: %v", err)
	}
	m.clearCredentials(ctx)

	_ = m.commit(ctx, gen, signedOut)

	m.emit(ctx, ActivityEventAccountBlocked, loaded.identity, map[string]any{
		"status": string(status),
	})

	return accountNotActive(status)
}

// discard drops tokens produced by a superseded attempt.
func (m *SessionManager) discard(ctx context.Context, tokens Tokens) {
	m.logger.Info("discarding superseded authentication result")
	if err := m.provider.SignOut(ctx, tokens); err != nil {
		m.logger.Warn("superseded session provider sign out failed: %v", err)
	}
	m.clearCredentials(ctx)
}

func (m *SessionManager) loadSession(ctx context.Context, tokens Tokens) (loadedSession, error) {
	fresh, err := m.provider.FetchSession(ctx, tokens)
	if err != nil {
		return loadedSession{}, err
	}
	if fresh.IsZero() {
		return loadedSession{}, ErrNoSession
	}
	return m.loadIdentity(ctx, fresh)
}

func (m *SessionManager) loadIdentity(ctx context.Context, tokens Tokens) (loadedSession, error) {
	identity, err := m.provider.GetCurrentUser(ctx, tokens)
	if err != nil {
		return loadedSession{}, err
	}

	attrs, err := m.provider.FetchUserAttributes(ctx, tokens)
	if err != nil {
		return loadedSession{}, err
	}
	if attrs == nil {
		attrs = Attributes{}
	}

	if identity.UserID == "" {
		identity.UserID = attrs.Get(AttrSubject)
	}
	if identity.UserID == "" {
		return loadedSession{}, errors.New("identity provider returned a user without an id")
	}
	if identity.DisplayName == "" {
		identity.DisplayName = attrs.DisplayName()
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.Username
	}

	return loadedSession{
		identity:   identity,
		attributes: attrs,
		tokens:     tokens,
	}, nil
}

// knownTokens prefers the tokens in memory over persisted ones.
func (m *SessionManager) knownTokens(ctx context.Context) Tokens {
	m.mu.RLock()
	var tokens Tokens
	if m.state.tokens != nil {
		tokens = *m.state.tokens
	}
	m.mu.RUnlock()

	if !tokens.IsZero() {
		return tokens
	}
	return m.storedTokens(ctx)
}

func (m *SessionManager) storedTokens(ctx context.Context) Tokens {
	tokens, err := m.credentials.Load(ctx)
	if err != nil {
		m.logger.Warn("credential store load failed: %v", err)
		return Tokens{}
	}
	return tokens
}

func (m *SessionManager) saveCredentials(ctx context.Context, tokens Tokens) {
	if err := m.credentials.Save(ctx, tokens); err != nil {
		m.logger.Warn("credential store save failed: %v", err)
	}
}

func (m *SessionManager) clearCredentials(ctx context.Context) {
	if err := m.credentials.Clear(ctx); err != nil {
		m.logger.Warn("credential store clear failed: %v", err)
	}
}

// clearCredentialsFor clears the store only while gen is current. Once a newer
// attempt has started the store belongs to it.
func (m *SessionManager) clearCredentialsFor(ctx context.Context, gen uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if gen != m.generation {
		m.logger.Debug("credential clear skipped, session moved on")
		return
	}
	m.clearCredentials(ctx)
}

func (m *SessionManager) purgeLegacyFlags(ctx context.Context) {
	if m.legacy == nil {
		return
	}
	purged, err := m.legacy.PurgeLegacyFlags(ctx)
	if err != nil {
		m.logger.Warn("legacy flag purge failed: %v", err)
		return
	}
	if len(purged) > 0 {
		m.logger.Info("purged legacy demo flags: %v", purged)
	}
}

func (m *SessionManager) emitTransition(ctx context.Context, from SessionStatus, snap SessionSnapshot) {
	event := ActivityEvent{
		EventType:  ActivityEventSessionStatusChanged,
		FromStatus: from,
		ToStatus:   snap.Status,
		Metadata:   map[string]any{"version": snap.Version},
	}
	if snap.Identity != nil {
		event.UserID = snap.Identity.UserID
		event.Username = snap.Identity.Username
	}
	m.record(ctx, event)
}

func (m *SessionManager) emit(ctx context.Context, eventType ActivityEventType, identity UserIdentity, metadata map[string]any) {
	m.record(ctx, ActivityEvent{
		EventType: eventType,
		UserID:    identity.UserID,
		Username:  identity.Username,
		Metadata:  metadata,
	})
}

func (m *SessionManager) record(ctx context.Context, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	if err := m.activitySink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
