package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"spotprice/internal/model"
)

type cacheEntry struct {
	prices    []model.RawPrice
	expiresAt time.Time
}

// ResponseCache keeps fetched prices in memory for a TTL.
//
// Intended for local development, where restarts would otherwise hit
// provider rate limits. Some providers' terms forbid caching; check them
// before enabling this anywhere else.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResponseCache{store: map[string]cacheEntry{}, ttl: ttl, now: time.Now}
}

// Get retrieves a cached response if available and not expired.
func (c *ResponseCache) Get(key string) ([]model.RawPrice, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.prices, true
}

func (c *ResponseCache) Set(key string, prices []model.RawPrice) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{prices: prices, expiresAt: c.now().Add(c.ttl)}
}

func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = map[string]cacheEntry{}
}

// Run evicts expired entries every interval until ctx is done.
func (c *ResponseCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evict()
		}
	}
}

func (c *ResponseCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, k)
		}
	}
}

// CacheKey derives a key from the source identity and the UTC date, so a
// new day always triggers a fresh fetch.
func CacheKey(info Info, now time.Time) string {
	keyStr := fmt.Sprintf("%s:%s:%s:%d:%s", info.ID, info.Provider, info.MarketArea, info.DurationMinutes, now.UTC().Format("2006-01-02"))
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])
}

// Cached wraps a Source with a ResponseCache.
type Cached struct {
	Source
	cache *ResponseCache
}

func WithCache(s Source, cache *ResponseCache) Source {
	if cache == nil {
		return s
	}
	return &Cached{Source: s, cache: cache}
}

func (c *Cached) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	key := CacheKey(c.Info(), c.cache.now())
	if prices, ok := c.cache.Get(key); ok {
		return append([]model.RawPrice(nil), prices...), nil
	}
	prices, err := c.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]model.RawPrice(nil), prices...))
	return prices, nil
}
