package jwt

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-oidc-sessions/internal/utils"
	"github.com/jrsteele09/go-oidc-sessions/token"
)

// TokenIntrospection represents the metadata information of an OAuth 2.0 token.
// The 'active' field indicates the state of the token - if it's false, other fields may not be populated.
type TokenIntrospection struct {
	Active     bool     `json:"active"`                // True or false - Is the token valid
	Sub        *string  `json:"sub,omitempty"`         // Subject as presented to the client
	ClientID   *string  `json:"client_id,omitempty"`   // Client the token was issued to
	Scope      *string  `json:"scope,omitempty"`       // Space separated scopes
	TokenClass *string  `json:"token_class,omitempty"` // access_token, refresh_token...
	Exp        *int64   `json:"exp,omitempty"`         // Expiration
	Aud        []string `json:"aud,omitempty"`         // Intended audiences
	Iat        *int64   `json:"iat,omitempty"`         // Issued at time
	Jti        *string  `json:"jti,omitempty"`         // Token ID
}

// Introspect reports whether value is a live token from this handler. Bad
// signatures, expiry and revocation all produce an inactive result.
func (h *Handler) Introspect(ctx context.Context, value string) (*TokenIntrospection, error) {
	claims, err := h.Decode(ctx, value)
	if err != nil {
		if errors.Is(err, token.ErrInvalidValue) || errors.Is(err, token.ErrRevoked) {
			return &TokenIntrospection{Active: false}, nil
		}
		return &TokenIntrospection{Active: false}, err
	}

	sub, _ := claims["sub"].(string)
	clientID, _ := claims["client_id"].(string)
	scope, _ := claims["scope"].(string)
	class, _ := claims["token_class"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &TokenIntrospection{
		Active:     true,
		Sub:        &sub,
		ClientID:   &clientID,
		Scope:      &scope,
		TokenClass: &class,
		Iat:        utils.Ptr(int64(iat)),
		Exp:        utils.Ptr(int64(exp)),
		Jti:        &jti,
		Aud:        utils.StringSlice(claims["aud"]),
	}, nil
}

// IDTokenClaims are the OpenID Connect claims a relying party reads from an
// ID token.
type IDTokenClaims struct {
	Subject   string
	Audience  []string
	SessionID string
	Nonce     string
	ACR       string
	AuthTime  time.Time
	Expiry    time.Time
}

// IDTokenVerifier checks ID tokens the way a relying party would, using the
// issuer's public key.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier creates a verifier for RS256 ID tokens issued to clientID.
func NewIDTokenVerifier(issuer, clientID string, publicKey crypto.PublicKey) *IDTokenVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{publicKey}}
	return &IDTokenVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:             clientID,
			SupportedSigningAlgs: []string{oidc.RS256},
			Now:                  func() time.Time { return NowTimeFunc() },
		}),
	}
}

// Verify validates signature, issuer, audience and expiry of rawIDToken.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken string) (*IDTokenClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Join(token.ErrInvalidValue, err)
	}

	var extra struct {
		SessionID string `json:"sid"`
		ACR       string `json:"acr"`
		AuthTime  int64  `json:"auth_time"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to read id token claims: %w", err)
	}

	claims := &IDTokenClaims{
		Subject:   idToken.Subject,
		Audience:  idToken.Audience,
		SessionID: extra.SessionID,
		Nonce:     idToken.Nonce,
		ACR:       strings.TrimSpace(extra.ACR),
		Expiry:    idToken.Expiry,
	}
	if extra.AuthTime > 0 {
		claims.AuthTime = time.Unix(extra.AuthTime, 0)
	}
	return claims, nil
}
