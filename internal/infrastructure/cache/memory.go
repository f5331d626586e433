package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/macrolens/nutriresolve/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	key      string
	data     []byte
	storedAt time.Time
	ttl      time.Duration
}

// MemoryCache is a thread-safe in-memory result cache with TTL support.
// Expired entries are removed when read, never swept in the background.
// When maxEntries > 0 the least recently used entry is evicted on overflow.
type MemoryCache struct {
	mutex      sync.Mutex
	data       map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	now        func() time.Time
}

// Option configures a MemoryCache
type Option func(*MemoryCache)

// WithMaxEntries bounds the cache size (0 = unbounded)
func WithMaxEntries(n int) Option {
	return func(c *MemoryCache) {
		c.maxEntries = n
	}
}

// WithClock overrides time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		data:  make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache. Expired and undecodable entries are
// deleted and reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.ResolutionResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}
	item := elem.Value.(*cacheItem)

	if c.now().Sub(item.storedAt) >= item.ttl {
		c.removeElement(elem)
		return nil, domain.ErrCacheMiss
	}

	var result domain.ResolutionResult
	if err := json.Unmarshal(item.data, &result); err != nil {
		c.removeElement(elem)
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheCorrupt, err)
	}

	c.order.MoveToFront(elem)
	return &result, nil
}

// Set stores a value in the cache with TTL, overwriting any previous entry
func (c *MemoryCache) Set(ctx context.Context, key string, value *domain.ResolutionResult, ttl time.Duration) error {
	// Serialize so callers can't mutate what's stored
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.setRaw(key, data, ttl)
	return nil
}

func (c *MemoryCache) setRaw(key string, data []byte, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item := &cacheItem{key: key, data: data, storedAt: c.now(), ttl: ttl}
	if elem, exists := c.data[key]; exists {
		elem.Value = item
		c.order.MoveToFront(elem)
		return
	}

	c.data[key] = c.order.PushFront(item)
	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, exists := c.data[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.data, item.key)
	c.order.Remove(elem)
}

// Size returns the current number of items in the cache, expired ones included
func (c *MemoryCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]*list.Element)
	c.order.Init()
}
