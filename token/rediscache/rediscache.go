// Package rediscache stores the revoked token denylist in Redis so that
// every process verifying tokens sees the same revocations.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oidc-sessions/token"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces denylist keys.
const DefaultKeyPrefix = "oidc:revoked:"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Cache implements token.RevokedTokenCache on Redis. Entries expire with
// the token they describe, so Cleanup has nothing to do.
type Cache struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ token.RevokedTokenCache = (*Cache)(nil)

// New connects to addr and checks the connection.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, DefaultKeyPrefix), nil
}

// NewWithClient wraps a pre-configured client.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Cache {
	return &Cache{client: client, keyPrefix: keyPrefix}
}

func (c *Cache) key(jti string) string {
	return c.keyPrefix + jti
}

// Add lists jti until exp. A zero exp keeps the entry forever; an exp in
// the past is a no-op since the token is already unusable.
func (c *Cache) Add(ctx context.Context, jti string, exp time.Time) error {
	var ttl time.Duration
	if !exp.IsZero() {
		ttl = exp.Sub(NowTimeFunc())
		if ttl <= 0 {
			return nil
		}
	}
	if err := c.client.Set(ctx, c.key(jti), exp.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

func (c *Cache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := c.client.Get(ctx, c.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read revoked token: %w", err)
	}
	return true, nil
}

func (c *Cache) Cleanup(_ context.Context) error {
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
