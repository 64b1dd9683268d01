package sessions

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oidc-sessions/branch"
	"github.com/jrsteele09/go-oidc-sessions/subject"
	"github.com/jrsteele09/go-oidc-sessions/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Grant is the authorization record at the bottom of the session tree. It
// owns the tokens minted under it. All mutable state is guarded by mu.
type Grant struct {
	ID                   string
	ClientID             string
	Subject              string
	SubjectType          subject.Type
	Scope                []string
	Claims               map[string]any
	AuthenticationEvent  AuthnEvent
	AuthorizationRequest AuthorizationRequest
	NotBefore            time.Time
	IssuedAt             time.Time
	ExpiresAt            time.Time // Zero means the grant does not expire

	mu                  sync.RWMutex
	usageRules          token.RuleSet // Grant tier
	clientRules         token.RuleSet // Client tier
	removeInactiveToken bool
	used                int
	issued              []*token.Token
	revoked             bool
}

// GrantParams describe a grant to be created.
type GrantParams struct {
	ID                   string // Generated when empty
	ClientID             string
	Subject              string
	SubjectType          subject.Type
	Scope                []string
	Claims               map[string]any
	AuthenticationEvent  AuthnEvent
	AuthorizationRequest AuthorizationRequest
	UsageRules           token.RuleSet // Grant tier
	ClientUsageRules     token.RuleSet // Client tier
	NotBefore            time.Time
	ExpiresIn            time.Duration
	RemoveInactiveToken  bool
}

// NewGrant creates an unrevoked grant with no tokens.
func NewGrant(p GrantParams) *Grant {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := NowTimeFunc()
	g := &Grant{
		ID:                   id,
		ClientID:             p.ClientID,
		Subject:              p.Subject,
		SubjectType:          p.SubjectType,
		Scope:                slices.Clone(p.Scope),
		Claims:               maps.Clone(p.Claims),
		AuthenticationEvent:  p.AuthenticationEvent,
		AuthorizationRequest: p.AuthorizationRequest.Clone(),
		NotBefore:            p.NotBefore,
		IssuedAt:             now,
		usageRules:           p.UsageRules.Clone(),
		clientRules:          p.ClientUsageRules.Clone(),
		removeInactiveToken:  p.RemoveInactiveToken,
	}
	if p.ExpiresIn > 0 {
		g.ExpiresAt = now.Add(p.ExpiresIn)
	}
	return g
}

func (*Grant) Level() branch.Level { return branch.LevelGrant }

// UsageRules returns a copy of the grant tier rules.
func (g *Grant) UsageRules() token.RuleSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usageRules.Clone()
}

// SetUsageRules replaces the grant tier rules for subsequent mints.
func (g *Grant) SetUsageRules(rules token.RuleSet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usageRules = rules.Clone()
}

// ClientUsageRules returns a copy of the client tier rules captured when the
// grant was created.
func (g *Grant) ClientUsageRules() token.RuleSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clientRules.Clone()
}

// EffectiveUsageRules resolves the rules a new token of class c would get.
func (g *Grant) EffectiveUsageRules(c token.Class) token.UsageRules {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return token.Resolve(c, g.usageRules, g.clientRules)
}

// SetRemoveInactiveToken controls whether revoked tokens are dropped from
// the issued list instead of only being flagged.
func (g *Grant) SetRemoveInactiveToken(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeInactiveToken = v
}

// Used returns the number of tokens minted under the grant.
func (g *Grant) Used() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.used
}

func (g *Grant) Revoked() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revoked
}

// Revoke marks the grant revoked. Its tokens are left untouched.
func (g *Grant) Revoke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked = true
}

// IsActive reports whether tokens may still be minted under the grant.
func (g *Grant) IsActive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isActive()
}

func (g *Grant) isActive() bool {
	if g.revoked {
		return false
	}
	now := NowTimeFunc()
	if !g.NotBefore.IsZero() && now.Before(g.NotBefore) {
		return false
	}
	return g.ExpiresAt.IsZero() || now.Before(g.ExpiresAt)
}

// IssuedTokens returns the grant's tokens in issuance order. The slice is a
// copy; the tokens are shared.
func (g *Grant) IssuedTokens() []*token.Token {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.issued)
}

// FindToken returns the token with the given value.
func (g *Grant) FindToken(value string) (*token.Token, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t := g.findToken(value); t != nil {
		return t, nil
	}
	return nil, ErrNotFound
}

func (g *Grant) findToken(value string) *token.Token {
	for _, t := range g.issued {
		if t.Value == value {
			return t
		}
	}
	return nil
}

// LastIssuedTokenOfType returns the most recently minted token of class c,
// or nil if there is none.
func (g *Grant) LastIssuedTokenOfType(c token.Class) *token.Token {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return token.LastIssuedOfClass(g.issued, c)
}
