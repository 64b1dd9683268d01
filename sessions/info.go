package sessions

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/branch"
)

// AuthnEvent records how and when the user authenticated. The engine only
// stores and returns it.
type AuthnEvent struct {
	UserID     string    // Subject identifier at the authentication source
	AuthnInfo  string    // Authentication context class reference
	AuthnTime  time.Time // When the user authenticated
	ValidUntil time.Time // Authentication freshness limit
}

// NewAuthnEvent creates an event for an authentication that happened now
// and stays fresh for lifetime.
func NewAuthnEvent(userID, authnInfo string, lifetime time.Duration) AuthnEvent {
	now := NowTimeFunc()
	return AuthnEvent{
		UserID:     userID,
		AuthnInfo:  authnInfo,
		AuthnTime:  now,
		ValidUntil: now.Add(lifetime),
	}
}

// IsValid reports whether the authentication is still fresh.
func (e AuthnEvent) IsValid() bool {
	return e.ValidUntil.IsZero() || NowTimeFunc().Before(e.ValidUntil)
}

// AuthorizationRequest is the subset of the authorization request kept on
// the grant.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	ResponseType        string
	Nonce               string
	SectorIdentifierURI string
	Claims              map[string]any
}

// Clone returns a copy sharing no slices or maps with r.
func (r AuthorizationRequest) Clone() AuthorizationRequest {
	r.Scope = slices.Clone(r.Scope)
	r.Claims = maps.Clone(r.Claims)
	return r
}

// Node is any record in the session tree.
type Node interface {
	Level() branch.Level
}

// subordinates tracks child keys of a tree node.
type subordinates struct {
	mu      sync.RWMutex
	keys    []string
	revoked bool
}

// Subordinates returns the keys of child nodes in creation order.
func (s *subordinates) Subordinates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keys)
}

func (s *subordinates) add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.keys, key) {
		s.keys = append(s.keys, key)
	}
}

// IsRevoked reports whether the node has been revoked.
func (s *subordinates) IsRevoked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked
}

func (s *subordinates) setRevoked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = v
}

// UserSessionInfo is the user level of the tree. It never holds tokens.
type UserSessionInfo struct {
	UserID string
	Extra  map[string]any
	subordinates
}

func (*UserSessionInfo) Level() branch.Level { return branch.LevelUser }

// ClientSessionInfo is one (user, client) pairing.
type ClientSessionInfo struct {
	ClientID string
	Extra    map[string]any
	subordinates
}

func (*ClientSessionInfo) Level() branch.Level { return branch.LevelClient }
