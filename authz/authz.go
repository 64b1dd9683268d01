// Package authz supplies the client tier of token usage rules.
package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/clients"
	"github.com/jrsteele09/go-oidc-sessions/token"
)

// GrantConfig is the provider wide policy applied to every client.
type GrantConfig struct {
	UsageRules token.RuleSet
	ExpiresIn  time.Duration // Grant lifetime, zero for no expiry
}

// Handler resolves per-client usage rules from the provider's grant config
// and the client's registration.
type Handler struct {
	clients clients.Repo
	config  GrantConfig
}

// New creates a handler. clients may be nil, in which case every client
// gets the grant config rules.
func New(clientRepo clients.Repo, cfg GrantConfig) *Handler {
	return &Handler{clients: clientRepo, config: cfg}
}

// UsageRules returns the grant config rules with the client's registered
// overrides laid over them field by field. Unknown clients get the grant
// config rules.
func (h *Handler) UsageRules(clientID string) (token.RuleSet, error) {
	rules := token.Overlay(nil, h.config.UsageRules)
	if h.clients == nil {
		return rules, nil
	}

	client, err := h.clients.Get(clientID)
	if errors.Is(err, clients.ErrNotFound) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %s: %w", clientID, err)
	}
	for class, override := range client.TokenUsageRules {
		rules[class] = override.Apply(rules[class])
	}
	return rules, nil
}

// GrantExpiresIn returns the configured grant lifetime.
func (h *Handler) GrantExpiresIn() time.Duration {
	return h.config.ExpiresIn
}
