package sessions

import (
	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

var (
	ErrNotFound          = errs.ErrNotFound
	ErrIncompletePath    = errs.ErrIncompletePath
	ErrInvalidBranchID   = errs.ErrInvalidBranchID
	ErrMintingNotAllowed = errs.ErrMintingNotAllowed
	ErrConfiguration     = errs.ErrConfiguration
)
