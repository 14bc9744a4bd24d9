package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"kbrag/internal/logging"
	"kbrag/internal/port"
)

// CachedEmbedder memoises embeddings by model and text in an expiring LRU.
type CachedEmbedder struct {
	next  port.Embedder
	cache *expirable.LRU[string, []float32]
}

// WithCache wraps e in an LRU cache. It returns e unchanged when size or ttl
// disable caching.
func WithCache(e port.Embedder, size int, ttl time.Duration) port.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &CachedEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text, apiKey string) ([]float32, error) {
	key := cacheKey(c.next.ModelName(), text)
	if cached, ok := c.cache.Get(key); ok {
		logging.FromContext(ctx).Debug("embedding cache hit")
		return cloneVector(cached), nil
	}
	vec, err := c.next.Embed(ctx, text, apiKey)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vec))
	return vec, nil
}

func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.next.ModelName()
}

func cacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
