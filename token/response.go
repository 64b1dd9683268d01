package token

import (
	"strings"

	"golang.org/x/oauth2"
)

// AsOAuth2Token packages minted tokens the way a token endpoint returns
// them. refresh and idToken may be nil.
func AsOAuth2Token(access, refresh, idToken *Token) *oauth2.Token {
	if access == nil {
		return nil
	}

	tok := &oauth2.Token{
		AccessToken: access.Value,
		TokenType:   "Bearer",
		Expiry:      access.ExpiresAt,
	}
	if !access.ExpiresAt.IsZero() {
		tok.ExpiresIn = int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds())
	}
	if refresh != nil {
		tok.RefreshToken = refresh.Value
	}

	extra := map[string]any{}
	if len(access.Scope) > 0 {
		extra["scope"] = strings.Join(access.Scope, " ")
	}
	if idToken != nil {
		extra["id_token"] = idToken.Value
	}
	if len(extra) == 0 {
		return tok
	}
	return tok.WithExtra(extra)
}
