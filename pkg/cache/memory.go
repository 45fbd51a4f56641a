package cache

import (
	"container/list"
	"sync"
	"time"
)

type memoryItem[V any] struct {
	key      string
	value    V
	expireAt time.Time
}

// MemoryCache is a size-bounded LRU with per-entry expiry. Expired entries are
// dropped lazily on access or when they reach the LRU tail.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache[V any](opts ...MemoryOption) *MemoryCache[V] {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		TTL:     time.Hour,
		Now:     time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache[V]{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}
}

// Set stores value under key. A non-positive expiration uses the cache TTL.
func (mc *MemoryCache[V]) Set(key string, value V, expiration time.Duration) {
	if expiration <= 0 {
		expiration = mc.ttl
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	expireAt := mc.now().Add(expiration)
	if el, ok := mc.items[key]; ok {
		item := el.Value.(*memoryItem[V])
		item.value = value
		item.expireAt = expireAt
		mc.order.MoveToFront(el)
		return
	}
	for len(mc.items) >= mc.maxSize {
		mc.removeElement(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(&memoryItem[V]{key: key, value: value, expireAt: expireAt})
}

// Get returns the live value for key and marks it recently used.
func (mc *MemoryCache[V]) Get(key string) (V, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var zero V
	el, ok := mc.items[key]
	if !ok {
		return zero, false
	}
	item := el.Value.(*memoryItem[V])
	if !mc.now().Before(item.expireAt) {
		mc.removeElement(el)
		return zero, false
	}
	mc.order.MoveToFront(el)
	return item.value, true
}

func (mc *MemoryCache[V]) Delete(keys ...string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
}

// Len counts stored entries, including expired ones not yet dropped.
func (mc *MemoryCache[V]) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache[V]) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem[V]).key)
}
