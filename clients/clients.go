// Package clients holds relying party registrations as far as the session
// engine needs them.
package clients

import (
	"errors"
	"slices"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/token"
)

var ErrNotFound = errors.New("client not found")

type Client struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	RedirectURIs []string `json:"redirectURIs"`
	// SectorIdentifierURI groups clients for pairwise subjects. When empty
	// the redirect URI host is used.
	SectorIdentifierURI string `json:"sectorIdentifierUri,omitempty"`
	// TokenUsageRules override the provider's grant config per token class.
	TokenUsageRules RuleOverrides `json:"tokenUsageRules,omitempty"`
}

// RuleOverride is a client's registered rules for one token class. Nil
// fields keep the value from the provider's grant config. A non-nil empty
// SupportsMinting forbids minting from the class.
type RuleOverride struct {
	MaxUsage        *int           `json:"maxUsage,omitempty"`
	SupportsMinting []token.Class  `json:"supportsMinting,omitempty"`
	ExpiresIn       *time.Duration `json:"expiresIn,omitempty"`
}

// Apply returns base with the fields set in o laid over it.
func (o RuleOverride) Apply(base token.UsageRules) token.UsageRules {
	out := base.Clone()
	if o.MaxUsage != nil {
		out.MaxUsage = *o.MaxUsage
	}
	if o.SupportsMinting != nil {
		out.SupportsMinting = slices.Clone(o.SupportsMinting)
	}
	if o.ExpiresIn != nil {
		out.ExpiresIn = *o.ExpiresIn
	}
	return out
}

type RuleOverrides map[token.Class]RuleOverride
