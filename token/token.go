// Package token models the tokens a grant issues and the rules that govern
// which tokens may be derived from which.
package token

import (
	"slices"
	"sync"
	"time"

	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrMintingNotAllowed = errs.ErrMintingNotAllowed
	ErrNoHandler         = errs.ErrNoTokenHandler
	ErrInvalidValue      = errs.ErrInvalidTokenValue
	ErrRevoked           = errs.ErrTokenRevoked
)

// Token is a credential issued under a grant. Identity fields are fixed at
// mint time; usage and revocation state is guarded by the token's own lock.
type Token struct {
	ID         string     // Unique token ID, also used as the JWT "jti"
	Value      string     // Opaque credential handed to the client
	Class      Class      // Token variant
	BasedOn    string     // Value of the source token, empty for root tokens
	SessionID  string     // Branch id of the owning grant
	UsageRules UsageRules // Effective rules resolved at mint time
	Scope      []string
	IssuedAt   time.Time
	ExpiresAt  time.Time

	mu         sync.RWMutex
	usageCount int
	revoked    bool
}

// Params describe a token before its value has been produced.
type Params struct {
	ID         string
	Class      Class
	BasedOn    string
	SessionID  string
	UsageRules UsageRules
	Scope      []string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// New creates an unrevoked token with no recorded usage.
func New(p Params, value string) *Token {
	return &Token{
		ID:         p.ID,
		Value:      value,
		Class:      p.Class,
		BasedOn:    p.BasedOn,
		SessionID:  p.SessionID,
		UsageRules: p.UsageRules.Clone(),
		Scope:      slices.Clone(p.Scope),
		IssuedAt:   p.IssuedAt,
		ExpiresAt:  p.ExpiresAt,
	}
}

// RegisterUsage records one use of the token.
func (t *Token) RegisterUsage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usageCount++
}

// UsageCount returns how many times the token has been used.
func (t *Token) UsageCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usageCount
}

// MaxUsageReached reports whether the usage cap has been hit.
func (t *Token) MaxUsageReached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxUsageReached()
}

func (t *Token) maxUsageReached() bool {
	return t.UsageRules.MaxUsage > 0 && t.usageCount >= t.UsageRules.MaxUsage
}

// Revoked reports whether the token has been revoked.
func (t *Token) Revoked() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revoked
}

// Revoke marks the token revoked. It returns false if it already was.
func (t *Token) Revoke() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.revoked {
		return false
	}
	t.revoked = true
	return true
}

// IsExpired reports whether the token's expiry has passed. A zero expiry
// never expires.
func (t *Token) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && !NowTimeFunc().Before(t.ExpiresAt)
}

// IsActive reports whether the token is not revoked, not expired and not
// over its usage limit.
func (t *Token) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.revoked && !t.IsExpired() && !t.maxUsageReached()
}

// CanMint reports whether a token of class c may be derived from t.
func (t *Token) CanMint(c Class) bool {
	return t.IsActive() && t.UsageRules.Allows(c)
}

// LastIssuedOfClass returns the most recently issued token of class c from
// tokens, which must be in issuance order.
func LastIssuedOfClass(tokens []*Token, c Class) *Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Class == c {
			return tokens[i]
		}
	}
	return nil
}
