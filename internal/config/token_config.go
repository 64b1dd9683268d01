package config

import "time"

type TokenConfig interface {
	GetIssuer() string
	GetCodeLifetime() time.Duration
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetIDTokenLifetime() time.Duration
	GetSigningKeyPEM() string
}

type Token struct {
	Issuer               string        `env:"OIDC_ISSUER" envDefault:"http://localhost:8080"`
	CodeLifetime         time.Duration `env:"CODE_LIFETIME" envDefault:"10m"`
	AccessTokenLifetime  time.Duration `env:"ACCESS_TOKEN_LIFETIME" envDefault:"1h"`
	RefreshTokenLifetime time.Duration `env:"REFRESH_TOKEN_LIFETIME" envDefault:"24h"`
	IDTokenLifetime      time.Duration `env:"ID_TOKEN_LIFETIME" envDefault:"1h"`
	// PEM encoded RSA private key. A key is generated at startup when empty.
	SigningKeyPEM string `env:"SIGNING_KEY_PEM"`
}

var _ TokenConfig = Token{}

func (t Token) GetIssuer() string {
	return t.Issuer
}

func (t Token) GetCodeLifetime() time.Duration {
	return t.CodeLifetime
}

func (t Token) GetAccessTokenLifetime() time.Duration {
	return t.AccessTokenLifetime
}

func (t Token) GetRefreshTokenLifetime() time.Duration {
	return t.RefreshTokenLifetime
}

func (t Token) GetIDTokenLifetime() time.Duration {
	return t.IDTokenLifetime
}

func (t Token) GetSigningKeyPEM() string {
	return t.SigningKeyPEM
}
