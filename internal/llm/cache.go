// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes vectors by model and text so repeated searches over
// overlapping result sets only embed the new papers.
type CachedEmbedder struct {
	next  Embedder
	model string
	cache *lru.Cache[string, []float64]
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next Embedder, model string, size int) *CachedEmbedder {
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		// lru.New only fails for size <= 0.
		cache, _ = lru.New[string, []float64](1)
	}
	return &CachedEmbedder{next: next, model: model, cache: cache}
}

// Embed returns cached vectors where available and embeds the rest in one
// call, preserving input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		keys[i] = c.key(t)
		if v, ok := c.cache.Get(keys[i]); ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		vectors[i] = fresh[j]
		c.cache.Add(keys[i], fresh[j])
	}
	return vectors, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
