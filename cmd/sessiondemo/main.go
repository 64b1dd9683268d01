package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oidc-sessions/authz"
	"github.com/jrsteele09/go-oidc-sessions/branch"
	"github.com/jrsteele09/go-oidc-sessions/clients"
	fakeclientrepo "github.com/jrsteele09/go-oidc-sessions/clients/fakerepo"
	"github.com/jrsteele09/go-oidc-sessions/internal/config"
	"github.com/jrsteele09/go-oidc-sessions/internal/metrics"
	"github.com/jrsteele09/go-oidc-sessions/sessions"
	"github.com/jrsteele09/go-oidc-sessions/subject"
	"github.com/jrsteele09/go-oidc-sessions/token"
	"github.com/jrsteele09/go-oidc-sessions/token/jwt"
	"github.com/jrsteele09/go-oidc-sessions/token/keys"
	"github.com/jrsteele09/go-oidc-sessions/token/opaque"
	"github.com/jrsteele09/go-oidc-sessions/token/rediscache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const demoClientID = "client_1"

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running session demo")
	}
	log.Info().Msg("Session demo finished")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(c.GetLogLevel()); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.close()
	return env.scenario(ctx)
}

type environment struct {
	manager    *sessions.Manager
	signer     *keys.KeyPairSigner
	issuer     string
	closeCache func() error
}

func newEnvironment(ctx context.Context, c config.Config) (*environment, error) {
	secret := c.GetBranchKeySecret()
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate branch key secret: %w", err)
		}
		log.Warn().Msg("BRANCH_KEY_SECRET not set, using an ephemeral secret")
	}
	codec, err := branch.NewCodec(secret)
	if err != nil {
		return nil, err
	}

	keyPair, err := loadKeyPair(c.GetSigningKeyPEM())
	if err != nil {
		return nil, err
	}
	signer := keys.NewKeyPairSigner(keyPair)

	var denylist token.RevokedTokenCache = token.NewInMemoryRevokedTokenCache()
	closeCache := func() error { return nil }
	if addr := c.GetRevokedCacheRedisAddr(); addr != "" {
		cache, err := rediscache.New(ctx, addr, c.GetRevokedCacheRedisPassword(), c.GetRevokedCacheRedisDB())
		if err != nil {
			return nil, err
		}
		denylist = cache
		closeCache = cache.Close
	}

	codeHandler, err := opaque.NewHandler(secret, c.GetCodeLifetime(), opaque.WithRevokedTokenCache(denylist))
	if err != nil {
		return nil, err
	}
	handlers := token.NewHandlerRegistry().
		Register(token.AuthorizationCode, codeHandler).
		Register(token.AccessToken, jwt.NewHandler(signer, c.GetIssuer(), c.GetAccessTokenLifetime(),
			jwt.WithAudience(c.GetIssuer()), jwt.WithRevokedTokenCache(denylist))).
		Register(token.RefreshToken, jwt.NewHandler(signer, c.GetIssuer(), c.GetRefreshTokenLifetime(),
			jwt.WithRevokedTokenCache(denylist))).
		Register(token.IDToken, jwt.NewHandler(signer, c.GetIssuer(), c.GetIDTokenLifetime(),
			jwt.WithRevokedTokenCache(denylist)))

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	if err := clientRepo.Upsert(&clients.Client{
		ID:           demoClientID,
		Description:  "Demo relying party",
		RedirectURIs: []string{"https://rp.example.com/callback"},
	}); err != nil {
		return nil, err
	}

	manager := sessions.NewManager(codec, handlers,
		sessions.WithSubjectRegistry(subject.NewRegistry(c.GetSubjectSalt())),
		sessions.WithClientRepo(clientRepo),
		sessions.WithRuleProvider(authz.New(clientRepo, authz.GrantConfig{ExpiresIn: c.GetGrantLifetime()})),
		sessions.WithRevokedTokenCache(denylist),
		sessions.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		sessions.WithRemoveInactiveToken(c.GetRemoveInactiveToken()),
	)

	return &environment{
		manager:    manager,
		signer:     signer,
		issuer:     c.GetIssuer(),
		closeCache: closeCache,
	}, nil
}

func loadKeyPair(pem string) (*keys.KeyPair, error) {
	if pem != "" {
		return keys.LoadKeyPairFromPEM("configured", pem)
	}
	return keys.GenerateRSAKeyPair("ephemeral", 2048)
}

func (e *environment) close() {
	if err := e.closeCache(); err != nil {
		log.Err(err).Msg("failed to close revoked token cache")
	}
}

// scenario walks diana through an authorization code flow for client_1.
func (e *environment) scenario(ctx context.Context) error {
	m := e.manager
	branchID, err := m.CreateSession(sessions.SessionParams{
		AuthenticationEvent: sessions.NewAuthnEvent("diana", "urn:mace:incommon:iap:silver", time.Hour),
		AuthorizationRequest: sessions.AuthorizationRequest{
			ClientID:     demoClientID,
			RedirectURI:  "https://rp.example.com/callback",
			Scope:        []string{"openid"},
			ResponseType: "code",
			Nonce:        "demo-nonce",
		},
		UserID:  "diana",
		SubType: subject.Pairwise,
	})
	if err != nil {
		return err
	}

	code, err := m.MintToken(ctx, branchID, token.AuthorizationCode, sessions.MintOptions{})
	if err != nil {
		return err
	}
	access, err := m.MintToken(ctx, branchID, token.AccessToken, sessions.MintOptions{BasedOn: code})
	if err != nil {
		return err
	}
	refresh, err := m.MintToken(ctx, branchID, token.RefreshToken, sessions.MintOptions{BasedOn: code})
	if err != nil {
		return err
	}
	idToken, err := m.MintToken(ctx, branchID, token.IDToken, sessions.MintOptions{BasedOn: code})
	if err != nil {
		return err
	}
	code.RegisterUsage()

	resp := token.AsOAuth2Token(access, refresh, idToken)
	log.Info().
		Str("token_type", resp.TokenType).
		Int64("expires_in", resp.ExpiresIn).
		Time("expiry", resp.Expiry).
		Msg("token response ready")

	verifier := jwt.NewIDTokenVerifier(e.issuer, demoClientID, e.signer.PublicKey())
	claims, err := verifier.Verify(ctx, idToken.Value)
	if err != nil {
		return fmt.Errorf("id token rejected: %w", err)
	}
	log.Info().Bool("sid_matches", claims.SessionID == branchID).Str("nonce", claims.Nonce).Msg("id token verified")

	if _, err := m.MintToken(ctx, branchID, token.AccessToken, sessions.MintOptions{BasedOn: code}); errors.Is(err, sessions.ErrMintingNotAllowed) {
		log.Info().Msg("used authorization code refused as expected")
	} else if err != nil {
		return err
	}

	revoked, err := m.RevokeToken(ctx, branchID, sessions.RevokeRequest{BasedOn: code.Value})
	if err != nil {
		return err
	}
	log.Info().Int("revoked", len(revoked)).Msg("tokens derived from the code revoked")

	grant, err := m.GetGrant(branchID)
	if err != nil {
		return err
	}
	for _, t := range grant.IssuedTokens() {
		log.Info().
			Str("class", t.Class.String()).
			Bool("active", t.IsActive()).
			Bool("revoked", t.Revoked()).
			Msg("issued token")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
