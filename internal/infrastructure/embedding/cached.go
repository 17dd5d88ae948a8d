// Package embedding wraps embedder clients with in-process caching.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

// DefaultCacheSize bounds the LRU; at 768 dims * 4 bytes * 1000 entries the
// cache stays around 3MB.
const DefaultCacheSize = 1000

// ModelNamer is implemented by embedders whose cache keys must include the
// model identity, so a model swap invalidates cached vectors.
type ModelNamer interface {
	ModelName() string
}

// CachedEmbedder wraps an Embedder with an LRU so repeated queries skip the
// embedding round trip.
type CachedEmbedder struct {
	inner ports.Embedder
	model string
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner ports.Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	model := ""
	if namer, ok := inner.(ModelNamer); ok {
		model = namer.ModelName()
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{
		inner: inner,
		model: model,
		cache: cache,
	}
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.model))
	return hex.EncodeToString(sum[:])
}
