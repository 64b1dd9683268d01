package keys_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oidc-sessions/token/keys"
	"github.com/stretchr/testify/require"
)

func TestKeyPairSigner(t *testing.T) {
	kp, err := keys.GenerateRSAKeyPair("kid-1", 1024)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "diana"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "kid-1", parsed.Header["kid"])

	t.Run("jwks", func(t *testing.T) {
		jwks, err := signer.GetJWKS()
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "RSA", jwks.Keys[0].Kty)
		require.Equal(t, keys.RS256, jwks.Keys[0].Alg)
	})

	t.Run("pem round trip", func(t *testing.T) {
		pemStr, err := kp.ExportPrivateKeyPEM()
		require.NoError(t, err)
		loaded, err := keys.LoadKeyPairFromPEM("kid-1", pemStr)
		require.NoError(t, err)

		_, err = jwt.Parse(raw, keys.NewKeyPairSigner(loaded).GetVerificationKey)
		require.NoError(t, err)
	})

	t.Run("rejects hmac tokens", func(t *testing.T) {
		hraw, err := keys.NewHMACSigner([]byte("secret")).Sign(jwt.MapClaims{"sub": "diana"})
		require.NoError(t, err)
		_, err = jwt.Parse(hraw, signer.GetVerificationKey)
		require.Error(t, err)
	})
}

func TestHMACSigner(t *testing.T) {
	signer := keys.NewHMACSigner([]byte("0123456789abcdef"))
	raw, err := signer.Sign(jwt.MapClaims{"sub": "diana"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.Equal(t, jwt.SigningMethodHS256, signer.GetSigningMethod())
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, "diana", sub)

	_, err = jwt.Parse(raw, keys.NewHMACSigner([]byte("another-secret!!")).GetVerificationKey)
	require.Error(t, err)
}
