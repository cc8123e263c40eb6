package storage

import (
	"github.com/maypok86/otter/v2"
	"time"
)

// Cache is a bounded in-memory map. Entries idle for longer than ttl are
// evicted; a zero ttl keeps them until capacity pressure removes them.
type Cache[T any] struct {
	outer *otter.Cache[string, T]
}

func NewCache[T any](capacity int, ttl time.Duration) *Cache[T] {
	opts := &otter.Options[string, T]{
		MaximumSize: capacity,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryAccessing[string, T](ttl)
	}

	return &Cache[T]{outer: otter.Must(opts)}
}

func (c *Cache[T]) Set(key string, val T) {
	c.outer.Set(key, val)
}

func (c *Cache[T]) Get(key string) (T, bool) {
	return c.outer.GetIfPresent(key)
}
