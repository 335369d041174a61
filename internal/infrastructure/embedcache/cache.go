package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const DefaultSize = 512

// Embedder memoizes query embeddings. Repeated recalls for the same rewritten
// query skip the gateway round trip.
type Embedder struct {
	inner ports.Embedder
	model string
	cache *lru.Cache[string, []float32]
}

func New(inner ports.Embedder, model string, size int) *Embedder {
	if size <= 0 {
		size = DefaultSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &Embedder{inner: inner, model: model, cache: cache}
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + e.model))
	return hex.EncodeToString(sum[:])
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, vec)
	return vec, nil
}

func (e *Embedder) Len() int {
	return e.cache.Len()
}
