// Package cache holds recently fetched query results keyed by caller-chosen
// strings, bounded by entry count and per-entry TTL.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

type entry struct {
	value     domain.ResultSet
	expiresAt time.Time
}

// ResultCache is a least-recently-used cache whose entries also expire
// independently. Concurrent writers to the same key race; the last one wins.
// Values are copied in and out, so a stored result never changes.
type ResultCache struct {
	mu         sync.Mutex // serializes expiry eviction against Set
	lru        *lru.Cache
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache holding at most size entries. Non-positive arguments
// select domain.MaxCacheSize and domain.DefaultCacheTTL.
func New(size int, defaultTTL time.Duration) (*ResultCache, error) {
	if size <= 0 {
		size = domain.MaxCacheSize
	}
	if defaultTTL <= 0 {
		defaultTTL = domain.DefaultCacheTTL
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &ResultCache{lru: l, defaultTTL: defaultTTL, now: time.Now}, nil
}

// Get returns the value for key if present and not expired.
func (c *ResultCache) Get(key string) (domain.ResultSet, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return domain.ResultSet{}, false
	}
	e := v.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.evict(key, e)
		return domain.ResultSet{}, false
	}
	return e.value.Clone(), true
}

// evict removes key only while it still holds stale, so a fresh Set that
// lands after the expiry check survives.
func (c *ResultCache) evict(key string, stale *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.lru.Peek(key); ok && cur.(*entry) == stale {
		c.lru.Remove(key)
	}
}

// Set stores value under key, replacing any previous entry.
func (c *ResultCache) Set(key string, value domain.ResultSet, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := &entry{value: value.Clone(), expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, e)
}

func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Len counts stored entries, including expired ones not yet looked up.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

func (c *ResultCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}
