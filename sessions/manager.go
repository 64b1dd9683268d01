// Package sessions keeps the User → Client → Grant session tree, mints
// tokens from grants and revokes them along their lineage.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/branch"
	"github.com/jrsteele09/go-oidc-sessions/clients"
	"github.com/jrsteele09/go-oidc-sessions/internal/metrics"
	"github.com/jrsteele09/go-oidc-sessions/subject"
	"github.com/jrsteele09/go-oidc-sessions/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RuleProvider supplies the client tier of token usage rules and the
// provider's grant lifetime.
type RuleProvider interface {
	UsageRules(clientID string) (token.RuleSet, error)
	GrantExpiresIn() time.Duration
}

// Manager owns the session tree. Structural changes (new users, clients and
// grants) are serialized by the manager; grant state is guarded per grant.
// Locks are always taken manager first, grant second.
type Manager struct {
	codec               *branch.Codec
	handlers            *token.HandlerRegistry
	subjects            *subject.Registry
	repo                Repo
	clients             clients.Repo
	rules               RuleProvider
	revoked             token.RevokedTokenCache
	metrics             *metrics.Metrics
	logger              zerolog.Logger
	removeInactiveToken bool
	grantExpiresIn      time.Duration

	mu sync.Mutex
}

type Option func(*Manager)

func WithSubjectRegistry(r *subject.Registry) Option {
	return func(m *Manager) { m.subjects = r }
}

// WithClientRepo supplies client registrations for sector identifiers.
func WithClientRepo(r clients.Repo) Option {
	return func(m *Manager) { m.clients = r }
}

// WithRuleProvider sets the source of client tier usage rules used when a
// session is created without explicit rules.
func WithRuleProvider(p RuleProvider) Option {
	return func(m *Manager) { m.rules = p }
}

// WithRevokedTokenCache makes revocations visible to token handlers.
func WithRevokedTokenCache(c token.RevokedTokenCache) Option {
	return func(m *Manager) { m.revoked = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithRemoveInactiveToken sets the default for new grants.
func WithRemoveInactiveToken(v bool) Option {
	return func(m *Manager) { m.removeInactiveToken = v }
}

// WithGrantExpiresIn sets the lifetime of new grants. It takes precedence
// over the rule provider's grant lifetime. Zero means no expiry unless the
// provider sets one.
func WithGrantExpiresIn(d time.Duration) Option {
	return func(m *Manager) { m.grantExpiresIn = d }
}

func WithRepo(r Repo) Option {
	return func(m *Manager) { m.repo = r }
}

// NewManager creates a manager with an in-memory tree and an unsalted
// subject registry unless options say otherwise.
func NewManager(codec *branch.Codec, handlers *token.HandlerRegistry, opts ...Option) *Manager {
	m := &Manager{
		codec:    codec,
		handlers: handlers,
		subjects: subject.NewRegistry(""),
		repo:     NewInMemoryRepo(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionParams describe a new authorization.
type SessionParams struct {
	AuthenticationEvent  AuthnEvent
	AuthorizationRequest AuthorizationRequest
	UserID               string
	ClientID             string // Taken from the request when empty
	SubType              subject.Type
	Scope                []string // Taken from the request when nil
	// TokenUsageRules is the client tier. When nil the rule provider is asked.
	TokenUsageRules token.RuleSet
}

// CreateSession creates a new grant for the user and client, creating the
// user and client nodes as needed, and returns the grant's branch id.
func (m *Manager) CreateSession(p SessionParams) (string, error) {
	clientID := p.ClientID
	if clientID == "" {
		clientID = p.AuthorizationRequest.ClientID
	}
	if p.UserID == "" || clientID == "" {
		return "", fmt.Errorf("%w: user id and client id are required", ErrConfiguration)
	}

	var sector string
	if p.SubType == subject.Pairwise {
		var err error
		if sector, err = m.sectorIdentifier(clientID, p.AuthorizationRequest); err != nil {
			return "", err
		}
	}
	sub, err := m.subjects.Subject(p.SubType, p.UserID, sector)
	if err != nil {
		return "", fmt.Errorf("failed to compute subject: %w", err)
	}

	clientRules := p.TokenUsageRules
	if clientRules == nil && m.rules != nil {
		if clientRules, err = m.rules.UsageRules(clientID); err != nil {
			return "", fmt.Errorf("failed to get usage rules for %s: %w", clientID, err)
		}
	}

	scope := p.Scope
	if scope == nil {
		scope = p.AuthorizationRequest.Scope
	}
	subType := p.SubType
	if subType == "" {
		subType = subject.Public
	}

	expiresIn := m.grantExpiresIn
	if expiresIn == 0 && m.rules != nil {
		expiresIn = m.rules.GrantExpiresIn()
	}

	grant := NewGrant(GrantParams{
		ClientID:             clientID,
		Subject:              sub,
		SubjectType:          subType,
		Scope:                scope,
		AuthenticationEvent:  p.AuthenticationEvent,
		AuthorizationRequest: p.AuthorizationRequest,
		ClientUsageRules:     clientRules,
		ExpiresIn:            expiresIn,
		RemoveInactiveToken:  m.removeInactiveToken,
	})

	path := branch.Path{p.UserID, clientID, grant.ID}
	branchID, err := m.codec.Encode(path...)
	if err != nil {
		return "", err
	}
	if err := m.insertGrant(path, grant); err != nil {
		return "", err
	}

	m.metrics.SessionCreated()
	m.logger.Info().
		Str("user_id", p.UserID).
		Str("client_id", clientID).
		Str("grant_id", grant.ID).
		Str("sub_type", string(subType)).
		Msg("session created")
	return branchID, nil
}

// AddGrant stores a pre-built grant under path and returns its branch id.
// A client level path gets a grant id from p or a generated one. An existing
// grant is never replaced.
func (m *Manager) AddGrant(path branch.Path, p GrantParams) (string, error) {
	switch path.Depth() {
	case branch.LevelClient:
	case branch.LevelGrant:
		p.ID = path.Grant()
	default:
		return "", fmt.Errorf("%w: add grant needs a client or grant path", ErrIncompletePath)
	}
	if err := path.Validate(); err != nil {
		return "", err
	}
	p.ClientID = path.Client()

	grant := NewGrant(p)
	full := branch.Path{path.User(), path.Client(), grant.ID}
	branchID, err := m.codec.Encode(full...)
	if err != nil {
		return "", err
	}
	if err := m.insertGrant(full, grant); err != nil {
		return "", err
	}
	m.logger.Debug().Str("grant_id", grant.ID).Msg("grant added")
	return branchID, nil
}

func (m *Manager) insertGrant(path branch.Path, grant *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	csi, err := m.ensureClientSession(path.User(), path.Client())
	if err != nil {
		return err
	}
	key := path.Key()
	if _, err := m.repo.Get(key); err == nil {
		return fmt.Errorf("%w: grant %s already exists", ErrConfiguration, grant.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to look up grant: %w", err)
	}
	if err := m.repo.Set(key, grant); err != nil {
		return fmt.Errorf("failed to store grant: %w", err)
	}
	csi.add(key)
	csi.setRevoked(false)
	return nil
}

// ensureClientSession must be called with m.mu held.
func (m *Manager) ensureClientSession(userID, clientID string) (*ClientSessionInfo, error) {
	userKey := branch.Path{userID}.Key()
	usi, err := m.userNode(userKey)
	if errors.Is(err, ErrNotFound) {
		usi = &UserSessionInfo{UserID: userID}
		if err := m.repo.Set(userKey, usi); err != nil {
			return nil, fmt.Errorf("failed to store user session: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	clientKey := branch.Path{userID, clientID}.Key()
	csi, err := m.clientNode(clientKey)
	if errors.Is(err, ErrNotFound) {
		csi = &ClientSessionInfo{ClientID: clientID}
		if err := m.repo.Set(clientKey, csi); err != nil {
			return nil, fmt.Errorf("failed to store client session: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	usi.add(clientKey)
	return csi, nil
}

func (m *Manager) sectorIdentifier(clientID string, req AuthorizationRequest) (string, error) {
	sectorURI := req.SectorIdentifierURI
	var redirectURIs []string
	if m.clients != nil {
		client, err := m.clients.Get(clientID)
		switch {
		case err == nil:
			if sectorURI == "" {
				sectorURI = client.SectorIdentifierURI
			}
			redirectURIs = client.RedirectURIs
		case !errors.Is(err, clients.ErrNotFound):
			return "", fmt.Errorf("failed to get client %s: %w", clientID, err)
		}
	}
	if len(redirectURIs) == 0 && req.RedirectURI != "" {
		redirectURIs = []string{req.RedirectURI}
	}
	return subject.SectorIdentifier(sectorURI, redirectURIs)
}

// EncryptedBranchID returns a branch id for a full or partial path.
func (m *Manager) EncryptedBranchID(path ...string) (string, error) {
	return m.codec.Encode(path...)
}

// DecryptBranchID returns the path a branch id addresses.
func (m *Manager) DecryptBranchID(branchID string) (branch.Path, error) {
	path, err := m.codec.Decode(branchID)
	if err != nil {
		m.logger.Debug().Err(err).Msg("branch id rejected")
		return nil, err
	}
	return path, nil
}

// Get resolves a full or partial path to its node.
func (m *Manager) Get(path ...string) (Node, error) {
	p := branch.Path(path)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	node, err := m.repo.Get(p.Key())
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", p.Depth(), p.Key(), err)
	}
	return node, nil
}

// GetByBranchID resolves a branch id to its node.
func (m *Manager) GetByBranchID(branchID string) (Node, error) {
	path, err := m.DecryptBranchID(branchID)
	if err != nil {
		return nil, err
	}
	return m.Get(path...)
}

func (m *Manager) userNode(key string) (*UserSessionInfo, error) {
	node, err := m.repo.Get(key)
	if err != nil {
		return nil, err
	}
	usi, ok := node.(*UserSessionInfo)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a user session", ErrNotFound, key)
	}
	return usi, nil
}

func (m *Manager) clientNode(key string) (*ClientSessionInfo, error) {
	node, err := m.repo.Get(key)
	if err != nil {
		return nil, err
	}
	csi, ok := node.(*ClientSessionInfo)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a client session", ErrNotFound, key)
	}
	return csi, nil
}

func (m *Manager) grantNode(key string) (*Grant, error) {
	node, err := m.repo.Get(key)
	if err != nil {
		return nil, err
	}
	g, ok := node.(*Grant)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a grant", ErrNotFound, key)
	}
	return g, nil
}

// pathAt decodes branchID and checks that it reaches level l.
func (m *Manager) pathAt(branchID string, l branch.Level) (branch.Path, error) {
	path, err := m.DecryptBranchID(branchID)
	if err != nil {
		return nil, err
	}
	if path.Depth() < l {
		return nil, fmt.Errorf("%w: %s level needs a longer path than %d segments", ErrIncompletePath, l, len(path))
	}
	return path, nil
}

// GetUserInfo returns the user session a branch id belongs to.
func (m *Manager) GetUserInfo(branchID string) (*UserSessionInfo, error) {
	path, err := m.pathAt(branchID, branch.LevelUser)
	if err != nil {
		return nil, err
	}
	return m.userNode(path.Prefix(branch.LevelUser).Key())
}

// GetClientSessionInfo returns the client session a branch id belongs to.
func (m *Manager) GetClientSessionInfo(branchID string) (*ClientSessionInfo, error) {
	path, err := m.pathAt(branchID, branch.LevelClient)
	if err != nil {
		return nil, err
	}
	return m.clientNode(path.Prefix(branch.LevelClient).Key())
}

// GetGrant returns the grant a branch id addresses.
func (m *Manager) GetGrant(branchID string) (*Grant, error) {
	path, err := m.pathAt(branchID, branch.LevelGrant)
	if err != nil {
		return nil, err
	}
	return m.grantNode(path.Key())
}

// BranchInfo is the decoded path of a branch id together with the nodes
// resolved along it. Nodes below the requested level are nil.
type BranchInfo struct {
	BranchID string
	UserID   string
	ClientID string
	GrantID  string
	User     *UserSessionInfo
	Client   *ClientSessionInfo
	Grant    *Grant
}

// BranchInfo resolves every node down to level. A zero level means the
// grant level, so the branch id must then address a grant.
func (m *Manager) BranchInfo(branchID string, level branch.Level) (*BranchInfo, error) {
	if level == 0 {
		level = branch.LevelGrant
	}
	path, err := m.pathAt(branchID, level)
	if err != nil {
		return nil, err
	}
	return m.branchInfo(branchID, path, level)
}

func (m *Manager) branchInfo(branchID string, path branch.Path, level branch.Level) (*BranchInfo, error) {
	info := &BranchInfo{
		BranchID: branchID,
		UserID:   path.User(),
		ClientID: path.Client(),
		GrantID:  path.Grant(),
	}
	var err error
	if info.User, err = m.userNode(path.Prefix(branch.LevelUser).Key()); err != nil {
		return nil, err
	}
	if level >= branch.LevelClient {
		if info.Client, err = m.clientNode(path.Prefix(branch.LevelClient).Key()); err != nil {
			return nil, err
		}
	}
	if level >= branch.LevelGrant {
		if info.Grant, err = m.grantNode(path.Key()); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// GetBranchInfoByToken finds the grant that issued the token with the given
// value and returns its full branch info.
func (m *Manager) GetBranchInfoByToken(value string) (*BranchInfo, error) {
	keys, err := m.repo.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, key := range keys {
		path := branch.ParseKey(key)
		if path.Depth() != branch.LevelGrant {
			continue
		}
		grant, err := m.grantNode(key)
		if err != nil {
			continue
		}
		tok, err := grant.FindToken(value)
		if err != nil {
			continue
		}
		branchID := tok.SessionID
		if branchID == "" {
			if branchID, err = m.codec.Encode(path...); err != nil {
				return nil, err
			}
		}
		return m.branchInfo(branchID, path, branch.LevelGrant)
	}
	return nil, fmt.Errorf("token: %w", ErrNotFound)
}

// FindToken returns the token with the given value issued under the grant
// the branch id addresses.
func (m *Manager) FindToken(branchID, value string) (*token.Token, error) {
	grant, err := m.GetGrant(branchID)
	if err != nil {
		return nil, err
	}
	return grant.FindToken(value)
}

// Grants lists the grants under a branch id. A user level id lists every
// grant of the user; client and grant level ids list the client's grants.
func (m *Manager) Grants(branchID string) ([]*Grant, error) {
	path, err := m.DecryptBranchID(branchID)
	if err != nil {
		return nil, err
	}
	return m.GrantsByPath(path...)
}

// GrantsByPath is Grants for a raw path.
func (m *Manager) GrantsByPath(path ...string) ([]*Grant, error) {
	p := branch.Path(path)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Depth() == branch.LevelUser {
		usi, err := m.userNode(p.Key())
		if err != nil {
			return nil, err
		}
		var out []*Grant
		for _, clientKey := range usi.Subordinates() {
			grants, err := m.clientGrants(clientKey)
			if err != nil {
				return nil, err
			}
			out = append(out, grants...)
		}
		return out, nil
	}
	return m.clientGrants(p.Prefix(branch.LevelClient).Key())
}

func (m *Manager) clientGrants(clientKey string) ([]*Grant, error) {
	csi, err := m.clientNode(clientKey)
	if err != nil {
		return nil, err
	}
	keys := csi.Subordinates()
	out := make([]*Grant, 0, len(keys))
	for _, key := range keys {
		g, err := m.grantNode(key)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// GetAuthenticationEvents returns the authentication events of the grant a
// branch id addresses, or of every grant of a client level id. User level
// ids fail with ErrIncompletePath.
func (m *Manager) GetAuthenticationEvents(branchID string) ([]AuthnEvent, error) {
	path, err := m.pathAt(branchID, branch.LevelClient)
	if err != nil {
		return nil, err
	}
	var grants []*Grant
	if path.Depth() == branch.LevelGrant {
		g, err := m.grantNode(path.Key())
		if err != nil {
			return nil, err
		}
		grants = []*Grant{g}
	} else if grants, err = m.clientGrants(path.Key()); err != nil {
		return nil, err
	}

	events := make([]AuthnEvent, 0, len(grants))
	for _, g := range grants {
		events = append(events, g.AuthenticationEvent)
	}
	return events, nil
}

// MintOptions tune Manager.MintToken.
type MintOptions struct {
	BasedOn   *token.Token
	ExpiresAt time.Time
	Scope     []string
	Claims    map[string]any
}

// MintToken mints a token of class c under the grant the branch id
// addresses, using the registered handler for c.
func (m *Manager) MintToken(ctx context.Context, branchID string, c token.Class, opts MintOptions) (*token.Token, error) {
	grant, err := m.GetGrant(branchID)
	if err != nil {
		return nil, err
	}
	handler, err := m.handlers.Handler(c)
	if err != nil {
		return nil, err
	}

	tok, err := grant.MintToken(ctx, MintRequest{
		SessionID: branchID,
		Class:     c,
		Handler:   handler,
		ExpiresAt: opts.ExpiresAt,
		BasedOn:   opts.BasedOn,
		Scope:     opts.Scope,
		Claims:    opts.Claims,
	})
	if err != nil {
		if errors.Is(err, ErrMintingNotAllowed) {
			m.metrics.MintingRefused(c.String())
			m.logger.Info().Err(err).Str("class", c.String()).Msg("minting refused")
		}
		return nil, err
	}

	m.metrics.TokenMinted(c.String())
	m.logger.Debug().Str("class", c.String()).Str("token_id", tok.ID).Msg("token minted")
	return tok, nil
}

// RevokeToken revokes tokens of the grant the branch id addresses.
func (m *Manager) RevokeToken(ctx context.Context, branchID string, req RevokeRequest) ([]*token.Token, error) {
	grant, err := m.GetGrant(branchID)
	if err != nil {
		return nil, err
	}
	revoked, err := grant.RevokeToken(req)
	if err != nil {
		return nil, err
	}
	m.publishRevoked(ctx, revoked)
	return revoked, nil
}

// RevokeGrant marks the grant revoked. Tokens already issued stay valid
// until revoked with RevokeToken.
func (m *Manager) RevokeGrant(branchID string) error {
	grant, err := m.GetGrant(branchID)
	if err != nil {
		return err
	}
	grant.Revoke()
	m.logger.Info().Str("grant_id", grant.ID).Msg("grant revoked")
	return nil
}

// RevokeClientSession revokes every grant of the addressed client together
// with all their tokens.
func (m *Manager) RevokeClientSession(ctx context.Context, branchID string) error {
	path, err := m.pathAt(branchID, branch.LevelClient)
	if err != nil {
		return err
	}

	m.mu.Lock()
	csi, err := m.clientNode(path.Prefix(branch.LevelClient).Key())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	var revoked []*token.Token
	grants, err := m.clientGrants(path.Prefix(branch.LevelClient).Key())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for _, g := range grants {
		revoked = append(revoked, g.revokeAll()...)
	}
	csi.setRevoked(true)
	m.mu.Unlock()

	m.logger.Info().
		Str("client_id", csi.ClientID).
		Int("grants", len(grants)).
		Msg("client session revoked")
	m.publishRevoked(ctx, revoked)
	return nil
}

// publishRevoked records revocations in metrics and the denylist. The tree
// is already updated, so denylist failures are logged rather than returned.
func (m *Manager) publishRevoked(ctx context.Context, revoked []*token.Token) {
	for _, t := range revoked {
		m.metrics.TokenRevoked(t.Class.String())
		if m.revoked == nil {
			continue
		}
		if err := m.revoked.Add(ctx, t.ID, t.ExpiresAt); err != nil {
			m.logger.Error().Err(err).Str("token_id", t.ID).Msg("failed to add token to denylist")
		}
	}
	if len(revoked) > 0 {
		m.logger.Info().Int("count", len(revoked)).Msg("tokens revoked")
	}
}

// ActiveTokens returns the tokens of the grant that are still usable.
func (m *Manager) ActiveTokens(branchID string) ([]*token.Token, error) {
	grant, err := m.GetGrant(branchID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(grant.IssuedTokens(), func(t *token.Token) bool {
		return !t.IsActive()
	}), nil
}
