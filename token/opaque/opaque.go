// Package opaque implements a token handler whose values are encrypted
// claim sets. It suits authorization codes, which only ever return to the
// issuer.
package opaque

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/internal/crypt"
	"github.com/jrsteele09/go-oidc-sessions/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type payload struct {
	ID        string         `json:"jti"`
	Class     string         `json:"token_class"`
	SessionID string         `json:"sid"`
	Subject   string         `json:"sub"`
	ClientID  string         `json:"client_id"`
	Scope     []string       `json:"scope,omitempty"`
	Nonce     string         `json:"nonce,omitempty"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Handler seals token metadata into opaque strings.
type Handler struct {
	crypter  *crypt.Crypter
	lifetime time.Duration
	revoked  token.RevokedTokenCache
}

var _ token.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithRevokedTokenCache makes Decode refuse values whose jti is listed.
func WithRevokedTokenCache(c token.RevokedTokenCache) Option {
	return func(h *Handler) {
		h.revoked = c
	}
}

// NewHandler creates a handler keyed by secret.
func NewHandler(secret []byte, lifetime time.Duration, opts ...Option) (*Handler, error) {
	c, err := crypt.New(secret, "opaque-token")
	if err != nil {
		return nil, fmt.Errorf("opaque handler: %w", err)
	}
	h := &Handler{crypter: c, lifetime: lifetime}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) Lifetime() time.Duration {
	return h.lifetime
}

func (h *Handler) Encode(ctx context.Context, meta token.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p := payload{
		ID:        meta.TokenID,
		Class:     string(meta.Class),
		SessionID: meta.SessionID,
		Subject:   meta.Subject,
		ClientID:  meta.ClientID,
		Scope:     meta.Scope,
		Nonce:     meta.Nonce,
		IssuedAt:  meta.IssuedAt.Unix(),
		Extra:     meta.Claims,
	}
	if !meta.ExpiresAt.IsZero() {
		p.ExpiresAt = meta.ExpiresAt.Unix()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", meta.Class, err)
	}
	return h.crypter.Seal(raw)
}

// Decode opens the value and returns its claims. Expired values fail with
// token.ErrInvalidValue and revoked ones with token.ErrRevoked.
func (h *Handler) Decode(ctx context.Context, value string) (map[string]any, error) {
	raw, err := h.crypter.Open(value)
	if err != nil {
		return nil, token.ErrInvalidValue
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrInvalidValue, err)
	}
	if p.ExpiresAt != 0 && NowTimeFunc().Unix() >= p.ExpiresAt {
		return nil, fmt.Errorf("%w: expired", token.ErrInvalidValue)
	}
	if h.revoked != nil && p.ID != "" {
		revoked, err := h.revoked.IsRevoked(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return nil, token.ErrRevoked
		}
	}

	claims := map[string]any{
		"jti":         p.ID,
		"token_class": p.Class,
		"sid":         p.SessionID,
		"sub":         p.Subject,
		"client_id":   p.ClientID,
		"iat":         p.IssuedAt,
	}
	if len(p.Scope) > 0 {
		claims["scope"] = p.Scope
	}
	if p.Nonce != "" {
		claims["nonce"] = p.Nonce
	}
	if p.ExpiresAt != 0 {
		claims["exp"] = p.ExpiresAt
	}
	for k, v := range p.Extra {
		if _, taken := claims[k]; !taken {
			claims[k] = v
		}
	}
	return claims, nil
}
