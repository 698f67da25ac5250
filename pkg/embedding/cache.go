package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/pkg/cache"
)

// MemoryCache implements Cache on top of an in-process store.
//
// Embeddings are stored with content-addressed keys (SHA-256 hash of text)
// to enable deduplication. Eviction is silent; a lost entry just means the
// embedding is regenerated on the next request.
type MemoryCache struct {
	store cache.Cache[[]float32]
}

// NewMemoryCache creates an embedding cache holding at most maxEntries
// embeddings with LRU eviction. Zero maxEntries disables caching entirely;
// a negative value removes the bound.
func NewMemoryCache(maxEntries int, options ...cache.Option[[]float32]) (*MemoryCache, error) {
	switch {
	case maxEntries == 0:
		return &MemoryCache{store: cache.NewNoop[[]float32]()}, nil
	case maxEntries < 0:
		unbounded, err := cache.NewSimple(options...)
		if err != nil {
			return nil, symerrors.Wrap(err, "embedding", "NewMemoryCache", "create unbounded cache")
		}
		return &MemoryCache{store: unbounded}, nil
	}
	lru, err := cache.NewLRU(maxEntries, options...)
	if err != nil {
		return nil, symerrors.Wrap(err, "embedding", "NewMemoryCache", "create LRU")
	}
	return &MemoryCache{store: lru}, nil
}

// Get retrieves a cached embedding by content hash.
func (c *MemoryCache) Get(_ context.Context, contentHash string) ([]float32, error) {
	embedding, ok := c.store.Get(contentHash)
	if !ok {
		return nil, symerrors.WrapInvalid(symerrors.ErrNotFound, "embedding", "Get", "cache miss for "+contentHash)
	}
	return embedding, nil
}

// Put stores an embedding in the cache with the given content hash.
func (c *MemoryCache) Put(_ context.Context, contentHash string, embedding []float32) error {
	if _, err := c.store.Set(contentHash, embedding); err != nil {
		return symerrors.Wrap(err, "embedding", "Put", "store embedding")
	}
	return nil
}

// ContentHash generates a SHA-256 hash of text content for use as a cache key.
//
// This function provides consistent hashing across the codebase for
// content-addressed storage.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
