// Package cache provides the engine's TTL caches. Values are treated as
// immutable snapshots: a write replaces the entry, readers never mutate it.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"cryptolens/internal/metrics"
)

// TTL is a typed key/value store whose entries expire after a fixed TTL.
type TTL[T any] struct {
	name  string
	ttl   time.Duration
	store *gocache.Cache
}

func New[T any](name string, ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		name:  name,
		ttl:   ttl,
		store: gocache.New(ttl, cleanupInterval(ttl)),
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func (c *TTL[T]) Name() string { return c.name }

func (c *TTL[T]) TTL() time.Duration { return c.ttl }

// Get returns the live entry for key. Expired entries are misses.
func (c *TTL[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := c.store.Get(key)
	metrics.RecordCacheLookup(c.name, ok)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (c *TTL[T]) Set(key string, value T) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

func (c *TTL[T]) Delete(key string) {
	c.store.Delete(key)
}

// Len counts stored entries, including expired ones not yet collected.
func (c *TTL[T]) Len() int { return c.store.ItemCount() }

func (c *TTL[T]) Flush() { c.store.Flush() }
