package llm

import (
	"context"
	"sync"
)

// CachedEmbedder memoizes embeddings by input text so enrichment never
// re-fetches a vector, and the scoring path stays free of network I/O for
// anything already seen.
type CachedEmbedder struct {
	inner EmbedderClient

	mu    sync.RWMutex
	cache map[string][]float32
}

func NewCachedEmbedder(inner EmbedderClient) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: make(map[string][]float32),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	vec, ok := c.cache[text]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[text] = vec
	c.mu.Unlock()
	return vec, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
