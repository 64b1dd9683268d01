package opaque_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/token"
	"github.com/jrsteele09/go-oidc-sessions/token/opaque"
	"github.com/stretchr/testify/require"
)

const testSecret = "opaque-secret-0123456789"

func TestHandler_EncodeDecode(t *testing.T) {
	ctx := context.Background()
	h, err := opaque.NewHandler([]byte(testSecret), 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, h.Lifetime())

	now := time.Now()
	meta := token.Metadata{
		TokenID:   "code-1",
		Class:     token.AuthorizationCode,
		SessionID: "branch-id",
		Subject:   "sub-1",
		ClientID:  "client_1",
		Scope:     []string{"openid"},
		Nonce:     "n-0S6_WzA2Mj",
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
		Claims:    map[string]any{"claims": "email", "sub": "ignored"},
	}

	value, err := h.Encode(ctx, meta)
	require.NoError(t, err)
	require.NotContains(t, value, "client_1")

	claims, err := h.Decode(ctx, value)
	require.NoError(t, err)
	require.Equal(t, "code-1", claims["jti"])
	require.Equal(t, "authorization_code", claims["token_class"])
	require.Equal(t, "branch-id", claims["sid"])
	require.Equal(t, "sub-1", claims["sub"])
	require.Equal(t, []string{"openid"}, claims["scope"])
	require.Equal(t, "n-0S6_WzA2Mj", claims["nonce"])
	require.Equal(t, "email", claims["claims"])

	t.Run("two codes for the same metadata differ", func(t *testing.T) {
		again, err := h.Encode(ctx, meta)
		require.NoError(t, err)
		require.NotEqual(t, value, again)
	})

	t.Run("foreign value", func(t *testing.T) {
		other, err := opaque.NewHandler([]byte("another-secret-0123456789"), time.Minute)
		require.NoError(t, err)
		_, err = other.Decode(ctx, value)
		require.ErrorIs(t, err, token.ErrInvalidValue)
	})

	t.Run("expired", func(t *testing.T) {
		orig := opaque.NowTimeFunc
		opaque.NowTimeFunc = func() time.Time { return now.Add(time.Hour) }
		defer func() { opaque.NowTimeFunc = orig }()

		_, err := h.Decode(ctx, value)
		require.ErrorIs(t, err, token.ErrInvalidValue)
	})
}

func TestHandler_Revoked(t *testing.T) {
	ctx := context.Background()
	denylist := token.NewInMemoryRevokedTokenCache()
	h, err := opaque.NewHandler([]byte(testSecret), time.Minute, opaque.WithRevokedTokenCache(denylist))
	require.NoError(t, err)

	now := time.Now()
	value, err := h.Encode(ctx, token.Metadata{
		TokenID:   "code-2",
		Class:     token.AuthorizationCode,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = h.Decode(ctx, value)
	require.NoError(t, err)

	require.NoError(t, denylist.Add(ctx, "code-2", now.Add(time.Minute)))
	_, err = h.Decode(ctx, value)
	require.ErrorIs(t, err, token.ErrRevoked)
}

func TestNewHandler_ShortSecret(t *testing.T) {
	_, err := opaque.NewHandler([]byte("short"), time.Minute)
	require.Error(t, err)
}
