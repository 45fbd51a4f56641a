package cache

import (
	"context"
	"errors"
	"time"
)

// Layer names where a value was found.
type Layer string

const (
	LayerNone   Layer = ""
	LayerMemory Layer = "memory"
	LayerRemote Layer = "redis"
)

// Layered is a two-level cache (L1: memory, L2: optional remote Service).
// Writes go through to both layers; remote hits are promoted to memory.
type Layered[V any] struct {
	mem    *MemoryCache[V]
	remote Service
}

// NewLayered creates a layered cache. remote may be nil for a memory-only cache.
func NewLayered[V any](remote Service, opts ...MemoryOption) *Layered[V] {
	return &Layered[V]{
		mem:    NewMemoryCache[V](opts...),
		remote: remote,
	}
}

// Set writes to memory, then to the remote layer. A remote error is returned after
// the memory write has succeeded.
func (lc *Layered[V]) Set(ctx context.Context, key string, value V, expiration time.Duration) error {
	lc.mem.Set(key, value, expiration)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Set(ctx, key, value, expiration)
}

// Get looks in memory first, then in the remote layer. A remote miss is not an error.
func (lc *Layered[V]) Get(ctx context.Context, key string) (V, Layer, error) {
	if v, ok := lc.mem.Get(key); ok {
		return v, LayerMemory, nil
	}
	var zero V
	if lc.remote == nil {
		return zero, LayerNone, nil
	}
	var v V
	if err := lc.remote.Get(ctx, key, &v); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return zero, LayerNone, nil
		}
		return zero, LayerNone, err
	}
	return v, LayerRemote, nil
}

// Promote stores a value fetched from the remote layer in memory only.
func (lc *Layered[V]) Promote(key string, value V, expiration time.Duration) {
	lc.mem.Set(key, value, expiration)
}

// Delete removes keys from both layers.
func (lc *Layered[V]) Delete(ctx context.Context, keys ...string) error {
	lc.mem.Delete(keys...)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Delete(ctx, keys...)
}

// Evict removes keys from memory only.
func (lc *Layered[V]) Evict(keys ...string) {
	lc.mem.Delete(keys...)
}

func (lc *Layered[V]) Len() int {
	return lc.mem.Len()
}

// HasRemote reports whether an L2 is configured.
func (lc *Layered[V]) HasRemote() bool {
	return lc.remote != nil
}
