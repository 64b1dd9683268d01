package token

import (
	"slices"
	"time"
)

// UsageRules is the policy attached to a single token class.
type UsageRules struct {
	// MaxUsage caps RegisterUsage calls. Zero means unbounded.
	MaxUsage int
	// SupportsMinting lists the classes that may be derived from the token.
	SupportsMinting []Class
	// ExpiresIn is the lifetime of tokens of this class. Zero defers to the handler.
	ExpiresIn time.Duration
}

// Allows reports whether a token with these rules may be the source of c.
func (r UsageRules) Allows(c Class) bool {
	return slices.Contains(r.SupportsMinting, c)
}

// Clone returns a copy that shares no slices with r.
func (r UsageRules) Clone() UsageRules {
	r.SupportsMinting = slices.Clone(r.SupportsMinting)
	return r
}

// IsZero reports whether no rule is set.
func (r UsageRules) IsZero() bool {
	return r.MaxUsage == 0 && len(r.SupportsMinting) == 0 && r.ExpiresIn == 0
}

// RuleSet maps token classes to their rules. A class that is present, even
// with zero rules, replaces whatever a lower tier says about it.
type RuleSet map[Class]UsageRules

// Clone deep copies the set.
func (s RuleSet) Clone() RuleSet {
	if s == nil {
		return nil
	}
	out := make(RuleSet, len(s))
	for c, r := range s {
		out[c] = r.Clone()
	}
	return out
}

// DefaultRules returns the system default rules for every class.
func DefaultRules() RuleSet {
	return RuleSet{
		AuthorizationCode: {
			MaxUsage:        1,
			SupportsMinting: []Class{AccessToken, RefreshToken, IDToken},
		},
		AccessToken: {},
		RefreshToken: {
			SupportsMinting: []Class{AccessToken, RefreshToken},
		},
		IDToken: {},
	}
}

// Overlay returns base with every class present in override replaced
// wholesale. Rules are never merged field by field.
func Overlay(base, override RuleSet) RuleSet {
	out := base.Clone()
	if out == nil {
		out = RuleSet{}
	}
	for c, r := range override {
		out[c] = r.Clone()
	}
	return out
}

// Resolve picks the effective rules for class. Tiers are ordered lowest
// priority first, after the system defaults; the last tier that mentions the
// class wins.
func Resolve(class Class, tiers ...RuleSet) UsageRules {
	effective := DefaultRules()[class]
	for _, tier := range tiers {
		if r, ok := tier[class]; ok {
			effective = r
		}
	}
	return effective.Clone()
}
