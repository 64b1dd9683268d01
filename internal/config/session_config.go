package config

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/internal/crypt"
	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

type SessionConfig interface {
	GetBranchKeySecret() []byte
	GetSubjectSalt() string
	GetRemoveInactiveToken() bool
	GetGrantLifetime() time.Duration
}

type Session struct {
	// Empty secrets are allowed; callers generate an ephemeral one.
	BranchKeySecret     string        `env:"BRANCH_KEY_SECRET"`
	SubjectSalt         string        `env:"SUBJECT_SALT"`
	RemoveInactiveToken bool          `env:"REMOVE_INACTIVE_TOKEN" envDefault:"false"`
	GrantLifetime       time.Duration `env:"GRANT_LIFETIME" envDefault:"0s"`
}

var _ SessionConfig = Session{}

func (s Session) GetBranchKeySecret() []byte {
	if s.BranchKeySecret == "" {
		return nil
	}
	return []byte(s.BranchKeySecret)
}

func (s Session) GetSubjectSalt() string {
	return s.SubjectSalt
}

func (s Session) GetRemoveInactiveToken() bool {
	return s.RemoveInactiveToken
}

func (s Session) GetGrantLifetime() time.Duration {
	return s.GrantLifetime
}

func (s Session) validate() error {
	if s.BranchKeySecret != "" && len(s.BranchKeySecret) < crypt.MinSecretLength {
		return fmt.Errorf("%w: BRANCH_KEY_SECRET must be at least %d bytes", errs.ErrConfiguration, crypt.MinSecretLength)
	}
	if s.GrantLifetime < 0 {
		return fmt.Errorf("%w: GRANT_LIFETIME must not be negative", errs.ErrConfiguration)
	}
	return nil
}
