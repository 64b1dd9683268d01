package metrics_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-oidc-sessions/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.SessionCreated()
	m.SessionCreated()
	m.TokenMinted("access_token")
	m.MintingRefused("refresh_token")
	m.TokenRevoked("access_token")
	m.TokenRevoked("access_token")

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 4, count)

	expected := `
# HELP oidc_sessions_tokens_revoked_total Tokens revoked, by token class.
# TYPE oidc_sessions_tokens_revoked_total counter
oidc_sessions_tokens_revoked_total{class="access_token"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "oidc_sessions_tokens_revoked_total"))
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP oidc_sessions_sessions_created_total Grants created through CreateSession.
# TYPE oidc_sessions_sessions_created_total counter
oidc_sessions_sessions_created_total 2
`), "oidc_sessions_sessions_created_total"))
}

func TestMetrics_Nil(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.SessionCreated()
		m.TokenMinted("id_token")
		m.MintingRefused("id_token")
		m.TokenRevoked("id_token")
	})
}
