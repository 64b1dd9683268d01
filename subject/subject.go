// Package subject computes the "sub" value a grant presents to a client.
package subject

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

var (
	ErrConfiguration = errs.ErrConfiguration
	ErrUnknownType   = errs.ErrUnknownSubjectType
)

// Type selects how subject identifiers are derived.
type Type string

const (
	// Public subjects are the same for every client.
	Public Type = "public"
	// Pairwise subjects are the same for clients sharing a sector identifier.
	Pairwise Type = "pairwise"
	// Ephemeral subjects are fresh for every grant.
	Ephemeral Type = "ephemeral"
)

// Policy derives a subject value for a user.
type Policy interface {
	Subject(userID, sectorIdentifier string) (string, error)
}

type publicPolicy struct {
	salt string
}

func (p publicPolicy) Subject(userID, _ string) (string, error) {
	return digest(userID, p.salt), nil
}

type pairwisePolicy struct {
	salt string
}

func (p pairwisePolicy) Subject(userID, sectorIdentifier string) (string, error) {
	if sectorIdentifier == "" {
		return "", fmt.Errorf("%w: pairwise subject requires a sector identifier", ErrConfiguration)
	}
	return digest(userID, sectorIdentifier, p.salt), nil
}

type ephemeralPolicy struct{}

func (ephemeralPolicy) Subject(_, _ string) (string, error) {
	return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Registry maps subject types to their policies.
type Registry struct {
	policies map[Type]Policy
}

// NewRegistry builds the standard public, pairwise and ephemeral policies.
// salt keeps public and pairwise values unlinkable to the raw user id.
func NewRegistry(salt string) *Registry {
	return &Registry{
		policies: map[Type]Policy{
			Public:    publicPolicy{salt: salt},
			Pairwise:  pairwisePolicy{salt: salt},
			Ephemeral: ephemeralPolicy{},
		},
	}
}

// Register installs or replaces the policy for a type.
func (r *Registry) Register(t Type, p Policy) {
	r.policies[t] = p
}

// Subject computes the subject for userID under type t. An empty type is
// treated as public.
func (r *Registry) Subject(t Type, userID, sectorIdentifier string) (string, error) {
	if t == "" {
		t = Public
	}
	p, ok := r.policies[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return p.Subject(userID, sectorIdentifier)
}

// SectorIdentifier derives the pairwise grouping key. The host of the
// sector identifier URI wins; without one, all redirect URIs must share a
// single host, which becomes the sector.
func SectorIdentifier(sectorURI string, redirectURIs []string) (string, error) {
	if sectorURI != "" {
		host, err := hostOf(sectorURI)
		if err != nil {
			return "", fmt.Errorf("%w: sector_identifier_uri: %v", ErrConfiguration, err)
		}
		return host, nil
	}

	var sector string
	for _, ru := range redirectURIs {
		host, err := hostOf(ru)
		if err != nil {
			return "", fmt.Errorf("%w: redirect_uri: %v", ErrConfiguration, err)
		}
		if sector != "" && host != sector {
			return "", fmt.Errorf("%w: redirect URIs span several hosts and no sector_identifier_uri is registered", ErrConfiguration)
		}
		sector = host
	}
	if sector == "" {
		return "", fmt.Errorf("%w: no sector identifier can be derived", ErrConfiguration)
	}
	return sector, nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", raw)
	}
	return strings.ToLower(u.Hostname()), nil
}
