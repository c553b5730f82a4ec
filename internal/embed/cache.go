package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DiskCache is a per-text, content-addressed embedding cache: one JSON file
// per vector under dir, keyed by SHA-256(text || model). Reads/writes that
// fail are treated as misses/no-ops and never surface as errors — a cold or
// corrupt cache must not block embedding.
type DiskCache struct {
	dir string
}

// NewDiskCache returns a cache rooted at dir, creating it if absent.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create embedding cache directory: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

// Key returns the cache key for a (text, model) pair.
func (c *DiskCache) Key(text, model string) string {
	sum := sha256.Sum256([]byte(text + model))
	return hex.EncodeToString(sum[:])
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached vector for key, or (nil, false) on any miss,
// including a corrupt or unreadable cache file.
func (c *DiskCache) Get(key string) ([]float32, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

// Put writes vec to the cache atomically (write-temp then rename). A write
// failure is swallowed; the embedding call that produced vec must not fail
// because the cache could not be updated.
func (c *DiskCache) Put(key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}

	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, c.path(key))
}

// CachedEmbeddingProvider wraps an EmbeddingProvider with a DiskCache,
// fetching only cache misses from the remote endpoint and re-interleaving
// results back into the caller's order.
type CachedEmbeddingProvider struct {
	inner EmbeddingProvider
	cache *DiskCache
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

func NewCachedEmbeddingProvider(inner EmbeddingProvider, cache *DiskCache) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{inner: inner, cache: cache}
}

// EmbedTexts serves cache hits locally and fetches only the misses from the
// wrapped provider, populating the cache and re-interleaving results back
// into the caller's original order.
func (c *CachedEmbeddingProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.inner.ModelName()
	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		key := c.cache.Key(text, model)
		keys[i] = key
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fetched, err := c.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missTexts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(fetched), len(missTexts))
	}

	for j, idx := range missIdx {
		results[idx] = fetched[j]
		c.cache.Put(keys[idx], fetched[j])
	}

	return results, nil
}

func (c *CachedEmbeddingProvider) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbeddingProvider) ModelName() string {
	return c.inner.ModelName()
}
