package llm

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// embedCacheSize bounds the embedding cache. Segment texts repeat across
// retrieval and persistence, so even a small cache saves round trips.
const embedCacheSize = 2048

// CachedEmbedder memoizes embeddings by exact text. Vectors are deterministic
// for a fixed model, so cached entries never go stale within a process.
type CachedEmbedder struct {
	inner *Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps an embedder with an LRU cache.
func NewCachedEmbedder(inner *Embedder) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](embedCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding on miss.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := e.cache.Get(text); ok {
		return vector, nil
	}

	vector, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, vector)
	return vector, nil
}

// Model returns the underlying embedding model name.
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

// Dimension returns the expected embedding dimension.
func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}
