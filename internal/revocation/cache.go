package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// defaultTTL caps cache residency. Revocation is monotonic and the ledger
// stays the source of truth, so an entry aging out only costs one ledger
// lookup; it never resurrects a revoked token.
const defaultTTL = 24 * time.Hour

// Cache is a positive-only store of revoked tokens in front of the ledger.
// Only confirmed revocations are written; a miss always means "ask the
// ledger", never "not revoked". That keeps cached state staleness-safe.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewCache builds a revocation cache over the shared Redis client. A nil
// client degrades every lookup to a miss.
func NewCache(client *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger, ttl: defaultTTL}
}

// MarkRevoked writes confirmed revocations through to Redis. Failures are
// logged and swallowed: the ledger already holds the durable flags.
func (c *Cache) MarkRevoked(ctx context.Context, tokens []string) {
	if c == nil || c.client == nil || len(tokens) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for _, token := range tokens {
		pipe.Set(ctx, cacheKey(token), "1", c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("revocation cache write failed", zap.Error(err), zap.Int("tokens", len(tokens)))
	}
}

// IsRevoked reports a cached positive. False means unknown, not clean.
func (c *Cache) IsRevoked(ctx context.Context, token string) bool {
	if c == nil || c.client == nil {
		return false
	}

	exists, err := c.client.Exists(ctx, cacheKey(token)).Result()
	if err != nil {
		c.logger.Warn("revocation cache read failed", zap.Error(err))
		return false
	}
	return exists > 0
}

// cacheKey hashes the token so raw signed tokens never land in Redis keys.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked:" + hex.EncodeToString(sum[:])
}
