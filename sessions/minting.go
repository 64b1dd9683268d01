package sessions

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oidc-sessions/token"
)

// MintRequest asks a grant for a new token.
type MintRequest struct {
	SessionID string        // Branch id recorded on the token
	Class     token.Class   // Class to mint
	Handler   token.Handler // Produces the credential value
	// ExpiresAt overrides the resolved lifetime when non-zero.
	ExpiresAt time.Time
	// BasedOn is the source token. Nil means root issuance.
	BasedOn *token.Token
	// Scope narrows the grant scope for this token. Nil means the grant scope.
	Scope  []string
	Claims map[string]any
}

// MintToken creates a token under the grant and appends it to the issued
// list. The grant stays locked for the whole call, so on failure nothing has
// changed and on success the token is visible together with its value.
func (g *Grant) MintToken(ctx context.Context, req MintRequest) (*token.Token, error) {
	if !req.Class.Valid() {
		return nil, fmt.Errorf("%w: %q", token.ErrUnknownClass, req.Class)
	}
	if req.Handler == nil {
		return nil, fmt.Errorf("%w: %s", token.ErrNoHandler, req.Class)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isActive() {
		return nil, fmt.Errorf("%w: grant %s is not active", ErrMintingNotAllowed, g.ID)
	}

	var basedOn string
	if req.BasedOn != nil {
		src := g.findToken(req.BasedOn.Value)
		if src == nil || src != req.BasedOn {
			return nil, fmt.Errorf("%w: source token does not belong to grant %s", ErrMintingNotAllowed, g.ID)
		}
		if !src.IsActive() {
			return nil, fmt.Errorf("%w: source %s is not active", ErrMintingNotAllowed, src.Class)
		}
		if !src.UsageRules.Allows(req.Class) {
			return nil, fmt.Errorf("%w: %s cannot be minted from %s", ErrMintingNotAllowed, req.Class, src.Class)
		}
		basedOn = src.Value
	} else if !req.Class.RootIssuable() {
		return nil, fmt.Errorf("%w: %s requires a source token", ErrMintingNotAllowed, req.Class)
	}

	rules := token.Resolve(req.Class, g.usageRules, g.clientRules)

	now := token.NowTimeFunc()
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		lifetime := rules.ExpiresIn
		if lifetime == 0 {
			lifetime = req.Handler.Lifetime()
		}
		if lifetime > 0 {
			expiresAt = now.Add(lifetime)
		}
	}

	scope := req.Scope
	if scope == nil {
		scope = g.Scope
	}

	params := token.Params{
		ID:         uuid.NewString(),
		Class:      req.Class,
		BasedOn:    basedOn,
		SessionID:  req.SessionID,
		UsageRules: rules,
		Scope:      slices.Clone(scope),
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
	}

	value, err := req.Handler.Encode(ctx, token.Metadata{
		TokenID:   params.ID,
		Class:     params.Class,
		SessionID: params.SessionID,
		Subject:   g.Subject,
		ClientID:  g.ClientID,
		Scope:     params.Scope,
		IssuedAt:  params.IssuedAt,
		ExpiresAt: params.ExpiresAt,
		AuthTime:  g.AuthenticationEvent.AuthnTime,
		ACR:       g.AuthenticationEvent.AuthnInfo,
		Nonce:     g.AuthorizationRequest.Nonce,
		Claims:    maps.Clone(req.Claims),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", req.Class, err)
	}

	t := token.New(params, value)
	g.issued = append(g.issued, t)
	g.used++
	return t, nil
}
