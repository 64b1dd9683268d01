package errors

import (
	"errors"
	"fmt"
)

// Common error kinds for the session engine
var (
	// Lookup errors
	ErrNotFound       = errors.New("not found")
	ErrIncompletePath = errors.New("branch path does not reach the requested level")

	// Branch id errors
	ErrInvalidBranchID = errors.New("invalid branch id")

	// Minting errors
	ErrMintingNotAllowed  = errors.New("minting not allowed")
	ErrUnknownTokenClass  = errors.New("unknown token class")
	ErrNoTokenHandler     = errors.New("no token handler for token class")
	ErrInvalidTokenValue  = errors.New("invalid token value")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUnknownSubjectType = errors.New("unknown subject type")

	// Configuration errors
	ErrConfiguration = errors.New("configuration error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
