// Package config reads the session engine configuration from the
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	SessionConfig
	TokenConfig
	CacheConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Session
	Token
	Cache
}

// New reads the process environment.
func New() (Config, error) {
	return parse(env.Options{})
}

// NewFromMap reads configuration from environ instead of the process
// environment.
func NewFromMap(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
