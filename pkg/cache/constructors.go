package cache

// NewLRU creates a cache that evicts the least recently used entry once
// maxSize is reached.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	opts := applyOptions(options...)
	return newLRUCache(maxSize, opts)
}

// NewSimple creates an unbounded map-backed cache.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	opts := applyOptions(options...)
	return newSimpleCache(opts)
}

// NewNoop creates a cache that stores nothing. Useful when caching is
// disabled by configuration.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{}
}

type noopCache[V any] struct{}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) { return false, nil }

func (c *noopCache[V]) Delete(_ string) (bool, error) { return false, nil }

func (c *noopCache[V]) Clear() error { return nil }

func (c *noopCache[V]) Size() int { return 0 }

func (c *noopCache[V]) Keys() []string { return nil }

func (c *noopCache[V]) Stats() *Statistics { return NewStatistics() }

func (c *noopCache[V]) Close() error { return nil }
