package ai

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
)

const (
	embedCacheTTL        = 24 * time.Hour
	defaultLocalCacheMax = 4096
)

// CachedEmbedder memoizes embeddings. With a Redis client the cache is
// shared across replicas; without one it falls back to a bounded
// in-process map. Cache failures never fail the embedding itself.
type CachedEmbedder struct {
	next      Embedder
	namespace string
	rdb       *redis.Client

	mu       sync.Mutex
	local    map[string][]float64
	localMax int
}

// NewCachedEmbedder wraps next. namespace separates vectors produced by
// different models; rdb may be nil.
func NewCachedEmbedder(next Embedder, namespace string, rdb *redis.Client) *CachedEmbedder {
	return &CachedEmbedder{
		next:      next,
		namespace: namespace,
		rdb:       rdb,
		local:     make(map[string][]float64),
		localMax:  defaultLocalCacheMax,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)

	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return cache.Key("embed", c.namespace, hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float64, bool) {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		vec, ok := c.local[key]
		return vec, ok
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("embedding cache read failed", "error", err)
		}
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float64) {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.local) >= c.localMax {
			// Reset when full.
			c.local = make(map[string][]float64)
		}
		c.local[key] = vec
		return
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, embedCacheTTL).Err(); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
}
