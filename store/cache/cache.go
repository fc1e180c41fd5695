package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the configuration for the in-memory cache.
type Config struct {
	// DefaultTTL applies to Set. Zero disables expiry.
	DefaultTTL time.Duration
	// CleanupInterval controls how often expired items are swept. Zero disables the sweeper.
	CleanupInterval time.Duration
	// MaxItems bounds the number of entries. Zero means unbounded.
	MaxItems int
	// OnEviction is called when an item is removed by expiry or capacity.
	OnEviction func(key string, value any)
}

type item struct {
	value      any
	expiration int64
}

func (i item) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// Cache is a thread-safe in-memory cache with per-item expiry.
type Cache struct {
	config Config
	items  sync.Map
	count  atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and starts its cleanup goroutine if configured.
func New(config Config) *Cache {
	c := &Cache{
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Set stores a value using the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	if _, loaded := c.items.Swap(key, item{value: value, expiration: expiration}); !loaded {
		c.count.Add(1)
	}

	if c.config.MaxItems > 0 && int(c.count.Load()) > c.config.MaxItems {
		c.evictOne(key)
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	raw, ok := c.items.Load(key)
	if !ok {
		return nil, false
	}
	it := raw.(item)
	if it.expired(time.Now().UnixNano()) {
		c.remove(key, it, true)
		return nil, false
	}
	return it.value, true
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	if _, loaded := c.items.LoadAndDelete(key); loaded {
		c.count.Add(-1)
	}
}

// Clear removes every item.
func (c *Cache) Clear(_ context.Context) {
	c.items.Range(func(key, _ any) bool {
		if _, loaded := c.items.LoadAndDelete(key); loaded {
			c.count.Add(-1)
		}
		return true
	})
}

// Size returns the number of items, including expired ones not yet swept.
func (c *Cache) Size() int64 {
	return c.count.Load()
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) remove(key string, it item, notify bool) {
	if _, loaded := c.items.LoadAndDelete(key); !loaded {
		return
	}
	c.count.Add(-1)
	if notify && c.config.OnEviction != nil {
		c.config.OnEviction(key, it.value)
	}
}

// evictOne drops the item closest to expiry, never the one just written.
func (c *Cache) evictOne(keep string) {
	var (
		victimKey  string
		victimItem item
		found      bool
	)
	c.items.Range(func(k, v any) bool {
		key := k.(string)
		if key == keep {
			return true
		}
		it := v.(item)
		if !found || (it.expiration > 0 && (victimItem.expiration == 0 || it.expiration < victimItem.expiration)) {
			victimKey, victimItem, found = key, it, true
		}
		return true
	})
	if found {
		c.remove(victimKey, victimItem, true)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()
	c.items.Range(func(k, v any) bool {
		if it := v.(item); it.expired(now) {
			c.remove(k.(string), it, true)
		}
		return true
	})
}
