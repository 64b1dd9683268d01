package token

import (
	"fmt"

	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

// Class is the closed set of token variants a grant can issue.
type Class string

const (
	AuthorizationCode Class = "authorization_code"
	AccessToken       Class = "access_token"
	RefreshToken      Class = "refresh_token"
	IDToken           Class = "id_token"
)

// Classes lists every known token class.
var Classes = []Class{AuthorizationCode, AccessToken, RefreshToken, IDToken}

var ErrUnknownClass = errs.ErrUnknownTokenClass

// ParseClass converts a class name into a Class.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
	return c, nil
}

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	switch c {
	case AuthorizationCode, AccessToken, RefreshToken, IDToken:
		return true
	}
	return false
}

// RootIssuable reports whether tokens of this class may be minted directly
// from a grant, without a source token.
func (c Class) RootIssuable() bool {
	return c == AuthorizationCode || c == IDToken
}

func (c Class) String() string {
	return string(c)
}
