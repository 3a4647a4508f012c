package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"topicscanner/internal/ports"
)

const cacheKeyPrefix = "topicscanner:embedding:"

// Cache decorates an embedder with a Redis lookaside cache keyed by the
// article's external id. Cache failures degrade to the inner embedder, never
// to a pipeline failure.
type Cache struct {
	inner  ports.Embedder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Embedder = (*Cache)(nil)

// NewCache wires the decorator. The logger may be nil.
func NewCache(inner ports.Embedder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Embed serves cached vectors by id and delegates only the misses.
func (c *Cache) Embed(ctx context.Context, ids []string, texts []string) ([][]float64, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("ids/texts length mismatch: %d vs %d", len(ids), len(texts))
	}
	if c.client == nil || len(ids) == 0 {
		return c.inner.Embed(ctx, ids, texts)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	out := make([][]float64, len(ids))
	missIdx := make([]int, 0, len(ids))

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed, bypassing cache", "error", err)
		return c.inner.Embed(ctx, ids, texts)
	}
	for i, raw := range cached {
		str, ok := raw.(string)
		if !ok {
			missIdx = append(missIdx, i)
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(str), &vec); err != nil || len(vec) == 0 {
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = vec
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missIDs := make([]string, len(missIdx))
	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missIDs[j] = ids[i]
		missTexts[j] = texts[i]
	}

	fresh, err := c.inner.Embed(ctx, missIDs, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missIdx) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(fresh), len(missIdx))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		encoded, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], encoded, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}

	return out, nil
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}
