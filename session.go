package auth

import (
	"fmt"
)

// session is the mutable record owned by SessionManager. It is only written
// through SessionManager.commit and SessionManager.update.
type session struct {
	status          SessionStatus
	identity        *UserIdentity
	attributes      Attributes
	tokens          *Tokens
	err             string
	loading         bool
	pendingUsername string
	version         uint64
}

func (s session) clone() session {
	out := s
	if s.identity != nil {
		id := *s.identity
		out.identity = &id
	}
	if s.tokens != nil {
		t := *s.tokens
		out.tokens = &t
	}
	out.attributes = s.attributes.Clone()
	return out
}

// clear drops every per user field. The error message and loading flag are
// left to the caller.
func (s *session) clear() {
	s.identity = nil
	s.attributes = nil
	s.tokens = nil
	s.pendingUsername = ""
}

func (s *session) authenticate(l loadedSession) {
	id := l.identity
	tokens := l.tokens
	s.status = StatusAuthenticated
	s.identity = &id
	s.tokens = &tokens
	s.attributes = l.attributes.Clone()
	s.err = ""
	s.loading = false
	s.pendingUsername = ""
}

// normalize enforces the pairing invariants: identity, attributes and tokens
// exist together and only while authenticated.
func (s *session) normalize() error {
	if s.status != StatusAuthenticated {
		s.identity = nil
		s.attributes = nil
		s.tokens = nil
		return nil
	}

	if s.identity == nil || s.tokens == nil {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"to":     string(s.status),
			"reason": "authenticated session requires identity and tokens",
		})
	}

	if s.attributes == nil {
		s.attributes = Attributes{}
	}

	return nil
}

func (s session) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Status:          s.status,
		Error:           s.err,
		Loading:         s.loading,
		PendingUsername: s.pendingUsername,
		Version:         s.version,
		hasTokens:       s.tokens != nil,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	snap.Attributes = s.attributes.Clone()
	return snap
}

// SessionSnapshot is a read only copy of the session handed to subscribers,
// route guards and UI code. Tokens are never copied into a snapshot; use
// SessionManager.IDToken or SessionManager.AccessToken.
type SessionSnapshot struct {
	Status          SessionStatus `json:"status"`
	Identity        *UserIdentity `json:"identity,omitempty"`
	Attributes      Attributes    `json:"attributes,omitempty"`
	Error           string        `json:"error,omitempty"`
	Loading         bool          `json:"loading"`
	PendingUsername string        `json:"pending_username,omitempty"`
	// Version increases with every committed change.
	Version uint64 `json:"version"`

	hasTokens bool
}

func (s SessionSnapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// HasTokens reports whether the session holds a token bundle.
func (s SessionSnapshot) HasTokens() bool {
	return s.hasTokens
}

// Role derives the dashboard role; employee when unset.
func (s SessionSnapshot) Role() Role {
	return s.Attributes.Role()
}

// StoreAccess derives the stores the session may operate on.
func (s SessionSnapshot) StoreAccess() StoreAccess {
	if !s.IsAuthenticated() {
		return StoreAccess{}
	}
	return s.Attributes.StoreAccess()
}

// HasStoreAccess reports whether the session may operate on storeID.
func (s SessionSnapshot) HasStoreAccess(storeID string) bool {
	return s.StoreAccess().Has(storeID)
}

func (s SessionSnapshot) String() string {
	user := "<none>"
	if s.Identity != nil {
		user = s.Identity.UserID
	}
	return fmt.Sprintf(
		"status=%s user=%s role=%s stores=%s loading=%t error=%q v=%d",
		s.Status,
		user,
		s.Role(),
		s.StoreAccess(),
		s.Loading,
		s.Error,
		s.Version,
	)
}

// loadedSession is the identity, attributes and tokens fetched together for a
// single attempt before being committed as one unit.
type loadedSession struct {
	identity   UserIdentity
	attributes Attributes
	tokens     Tokens
}
