// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oidc_sessions"

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	sessionsCreated prometheus.Counter
	tokensMinted    *prometheus.CounterVec
	mintingRefused  *prometheus.CounterVec
	tokensRevoked   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Grants created through CreateSession.",
		}),
		tokensMinted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Tokens minted, by token class.",
		}, []string{"class"}),
		mintingRefused: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minting_refused_total",
			Help:      "Mint requests refused, by requested token class.",
		}, []string{"class"}),
		tokensRevoked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Tokens revoked, by token class.",
		}, []string{"class"}),
	}
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) TokenMinted(class string) {
	if m == nil {
		return
	}
	m.tokensMinted.WithLabelValues(class).Inc()
}

func (m *Metrics) MintingRefused(class string) {
	if m == nil {
		return
	}
	m.mintingRefused.WithLabelValues(class).Inc()
}

func (m *Metrics) TokenRevoked(class string) {
	if m == nil {
		return
	}
	m.tokensRevoked.WithLabelValues(class).Inc()
}
