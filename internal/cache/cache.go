// Package cache provides a Redis-backed response cache for repeat provider
// lookups.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when an operation has no specific TTL configured.
const DefaultTTL = 1 * time.Hour

// ResponseCache stores provider responses keyed by a stable request hash.
// Misses fall through to the real call; the cache is strictly best-effort.
type ResponseCache struct {
	client *redis.Client
	prefix string
}

// New creates a response cache on an existing Redis client.
func New(client *redis.Client, prefix string) *ResponseCache {
	if prefix == "" {
		prefix = "enrichment"
	}
	return &ResponseCache{client: client, prefix: prefix}
}

// Key builds a deterministic cache key from provider, operation and params.
// Parameter keys are sorted before hashing so semantically identical
// requests with differently-ordered fields hash identically.
func Key(providerID, operation string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(providerID)
	sb.WriteByte('|')
	sb.WriteString(operation)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fmt.Sprintf("%v", params[k]))
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload for a key, or (nil, false) on a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (map[string]any, bool) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Result()
	if err != nil {
		// Misses and transport errors look the same to callers.
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a payload under a key with the given TTL. Failures are
// swallowed; a broken cache must never fail an enrichment.
func (c *ResponseCache) Set(ctx context.Context, key string, data map[string]any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.redisKey(key), raw, ttl).Err()
}

func (c *ResponseCache) redisKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}
