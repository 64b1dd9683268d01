package sessions

import (
	"fmt"
	"slices"

	"github.com/jrsteele09/go-oidc-sessions/token"
)

// RevokeRequest selects tokens to revoke within one grant. Value names a
// single token; BasedOn names every token minted from the token with that
// value. At least one must be set. Revocation cascades to every token derived
// from a revoked one unless NonRecursive is set.
type RevokeRequest struct {
	Value        string
	BasedOn      string
	NonRecursive bool // Revoke only the selected tokens
}

// RevokeToken revokes the selected tokens and, unless NonRecursive is set,
// every token whose lineage passes through them. It returns the tokens that changed state.
func (g *Grant) RevokeToken(req RevokeRequest) ([]*token.Token, error) {
	if req.Value == "" && req.BasedOn == "" {
		return nil, fmt.Errorf("%w: no token selected", ErrNotFound)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var targets []*token.Token
	if req.Value != "" {
		t := g.findToken(req.Value)
		if t == nil {
			return nil, ErrNotFound
		}
		targets = append(targets, t)
	}
	if req.BasedOn != "" {
		targets = append(targets, g.dependents(req.BasedOn)...)
	}

	var revoked []*token.Token
	seen := make(map[*token.Token]bool)
	for _, t := range targets {
		revoked = g.revokeLineage(t, !req.NonRecursive, seen, revoked)
	}
	g.dropRevoked()
	return revoked, nil
}

// revokeLineage revokes t and, if recursive, its dependents depth first.
func (g *Grant) revokeLineage(t *token.Token, recursive bool, seen map[*token.Token]bool, out []*token.Token) []*token.Token {
	if seen[t] {
		return out
	}
	seen[t] = true
	if t.Revoke() {
		out = append(out, t)
	}
	if !recursive {
		return out
	}
	for _, d := range g.dependents(t.Value) {
		out = g.revokeLineage(d, recursive, seen, out)
	}
	return out
}

func (g *Grant) dependents(value string) []*token.Token {
	var out []*token.Token
	for _, t := range g.issued {
		if t.BasedOn == value {
			out = append(out, t)
		}
	}
	return out
}

// revokeAll revokes the grant and every token it issued.
func (g *Grant) revokeAll() []*token.Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked = true
	var out []*token.Token
	for _, t := range g.issued {
		if t.Revoke() {
			out = append(out, t)
		}
	}
	g.dropRevoked()
	return out
}

func (g *Grant) dropRevoked() {
	if !g.removeInactiveToken {
		return
	}
	g.issued = slices.DeleteFunc(g.issued, (*token.Token).Revoked)
}
