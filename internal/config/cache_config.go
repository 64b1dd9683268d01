package config

type CacheConfig interface {
	GetRevokedCacheRedisAddr() string
	GetRevokedCacheRedisPassword() string
	GetRevokedCacheRedisDB() int
}

// Cache selects the revoked token denylist. An empty address keeps it in
// memory.
type Cache struct {
	RedisAddr     string `env:"REVOKED_CACHE_REDIS_ADDR"`
	RedisPassword string `env:"REVOKED_CACHE_REDIS_PASSWORD"`
	RedisDB       int    `env:"REVOKED_CACHE_REDIS_DB" envDefault:"0"`
}

var _ CacheConfig = Cache{}

func (c Cache) GetRevokedCacheRedisAddr() string {
	return c.RedisAddr
}

func (c Cache) GetRevokedCacheRedisPassword() string {
	return c.RedisPassword
}

func (c Cache) GetRevokedCacheRedisDB() int {
	return c.RedisDB
}
