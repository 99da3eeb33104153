// Package cache provides an optional Redis-backed embedding cache.
//
// Query embeddings are keyed by a content hash of (model, text), so repeated
// questions skip the embedding network call. The cache is a best-effort
// optimization: misses and Redis failures fall back to the provider, and a
// nil *EmbeddingCache is a valid no-op.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omartood/tafsiir-agent/config"
)

// EmbeddingCache caches embedding vectors in Redis.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache connects to Redis and verifies the connection.
func NewEmbeddingCache(ctx context.Context, cfg config.RedisConfig) (*EmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return &EmbeddingCache{client: client, ttl: cfg.TTL}, nil
}

// Key derives the cache key for a (model, text) pair.
func Key(model, text string) string {
	h := sha256.Sum256([]byte(model + "|" + text))
	return "tafsiir:embed:" + hex.EncodeToString(h[:])
}

// Fetch returns a cached vector and whether it was found.
func (c *EmbeddingCache) Fetch(ctx context.Context, model, text string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, Key(model, text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// Save stores a vector, best-effort.
func (c *EmbeddingCache) Save(ctx context.Context, model, text string, vec []float32) {
	if c == nil || c.client == nil || len(vec) == 0 {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	c.client.Set(ctx, Key(model, text), data, c.ttl)
}

// Close releases the Redis connection.
func (c *EmbeddingCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
