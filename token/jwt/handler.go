// Package jwt provides the signed JWT token handler used for access,
// refresh and ID tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oidc-sessions/token"
	"github.com/jrsteele09/go-oidc-sessions/token/keys"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// registeredClaims may not be overridden by caller supplied claims.
var registeredClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "iat": {}, "exp": {}, "jti": {},
	"sid": {}, "token_class": {}, "client_id": {},
}

// Handler signs token metadata into JWTs and verifies them on decode.
type Handler struct {
	signer   keys.Signer
	issuer   string
	audience []string
	lifetime time.Duration
	revoked  token.RevokedTokenCache
}

var _ token.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithAudience sets the "aud" claim for access and refresh tokens. ID tokens
// are always addressed to the client.
func WithAudience(aud ...string) Option {
	return func(h *Handler) {
		h.audience = aud
	}
}

// WithRevokedTokenCache makes Decode refuse tokens whose jti is listed.
func WithRevokedTokenCache(c token.RevokedTokenCache) Option {
	return func(h *Handler) {
		h.revoked = c
	}
}

// NewHandler creates a JWT handler.
func NewHandler(signer keys.Signer, issuer string, lifetime time.Duration, opts ...Option) *Handler {
	h := &Handler{
		signer:   signer,
		issuer:   issuer,
		lifetime: lifetime,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Lifetime() time.Duration {
	return h.lifetime
}

// Encode creates the signed JWT for meta.
func (h *Handler) Encode(ctx context.Context, meta token.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	claims := jwtlib.MapClaims{}
	for k, v := range meta.Claims {
		if _, reserved := registeredClaims[k]; !reserved {
			claims[k] = v
		}
	}

	claims["iss"] = h.issuer
	claims["sub"] = meta.Subject
	claims["iat"] = meta.IssuedAt.Unix()
	claims["jti"] = meta.TokenID
	claims["token_class"] = string(meta.Class)
	if !meta.ExpiresAt.IsZero() {
		claims["exp"] = meta.ExpiresAt.Unix()
	}

	switch meta.Class {
	case token.IDToken:
		// OpenID Connect Core 2: ID tokens are addressed to the client
		claims["aud"] = meta.ClientID
		claims["azp"] = meta.ClientID
		claims["sid"] = meta.SessionID
		if meta.Nonce != "" {
			claims["nonce"] = meta.Nonce
		}
		if !meta.AuthTime.IsZero() {
			claims["auth_time"] = meta.AuthTime.Unix()
		}
		if meta.ACR != "" {
			claims["acr"] = meta.ACR
		}
	default:
		claims["client_id"] = meta.ClientID
		if len(h.audience) > 0 {
			claims["aud"] = h.audience
		}
		if len(meta.Scope) > 0 {
			claims["scope"] = strings.Join(meta.Scope, " ")
		}
	}

	signed, err := h.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", meta.Class, err)
	}
	return signed, nil
}

// Decode verifies the JWT and returns its claims. Revoked tokens fail with
// token.ErrRevoked.
func (h *Handler) Decode(ctx context.Context, value string) (map[string]any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, token.ErrInvalidValue
	}

	parsed, err := jwtlib.ParseWithClaims(value, jwtlib.MapClaims{}, h.signer.GetVerificationKey,
		jwtlib.WithIssuer(h.issuer),
		jwtlib.WithIssuedAt(),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
		jwtlib.WithValidMethods([]string{h.signer.GetSigningMethod().Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(token.ErrInvalidValue, err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims from token", token.ErrInvalidValue)
	}

	if h.revoked != nil {
		if jti, _ := claims["jti"].(string); jti != "" {
			revoked, err := h.revoked.IsRevoked(ctx, jti)
			if err != nil {
				return nil, fmt.Errorf("failed to check revocation: %w", err)
			}
			if revoked {
				return nil, token.ErrRevoked
			}
		}
	}
	return claims, nil
}
