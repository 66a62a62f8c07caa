// Package cache holds the in-process caches of the generation pipeline. All
// TTLs are checked lazily on read; nothing sweeps entries in the background.
package cache

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// ListCache keeps the last fetched list of T with a freshness window. The
// last value stays retrievable after expiry so callers can serve stale data
// when the upstream fails.
type ListCache[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       Clock
	items     []T
	fetchedAt time.Time
	set       bool
}

// NewListCache creates an empty cache with the given TTL.
func NewListCache[T any](ttl time.Duration, now Clock) *ListCache[T] {
	if now == nil {
		now = time.Now
	}
	return &ListCache[T]{ttl: ttl, now: now}
}

// Fresh returns the cached list when it is younger than the TTL.
func (c *ListCache[T]) Fresh() ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.items, true
}

// Stale returns the last stored list regardless of age, with its fetch time.
func (c *ListCache[T]) Stale() ([]T, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.fetchedAt, c.set
}

// Set stores items as the newest list. The slice is treated as immutable
// from here on.
func (c *ListCache[T]) Set(items []T) {
	c.SetAt(items, c.now())
}

// SetAt stores items with an explicit fetch time, used when seeding from a
// persisted snapshot.
func (c *ListCache[T]) SetAt(items []T, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.fetchedAt = fetchedAt
	c.set = true
}

// Clear forgets the stored list.
func (c *ListCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.fetchedAt = time.Time{}
	c.set = false
}

// RegistryConfig sets the TTLs of the process caches.
type RegistryConfig struct {
	MarketTTL time.Duration
	NewsTTL   time.Duration
	TradeTTL  time.Duration
	Now       Clock
}

// Registry owns every in-process cache. It is built once at startup and
// passed to the pipeline; Reset is the only way to clear it.
type Registry struct {
	Markets  *ListCache[domain.Market]
	News     *ListCache[domain.NewsArticle]
	Trades   *TradeCache
	Research *ResearchBook
}

// NewRegistry builds the caches, filling zero TTLs with defaults of 60s for
// markets, 5m for news and 5m for trades.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MarketTTL <= 0 {
		cfg.MarketTTL = 60 * time.Second
	}
	if cfg.NewsTTL <= 0 {
		cfg.NewsTTL = 5 * time.Minute
	}
	if cfg.TradeTTL <= 0 {
		cfg.TradeTTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		Markets:  NewListCache[domain.Market](cfg.MarketTTL, cfg.Now),
		News:     NewListCache[domain.NewsArticle](cfg.NewsTTL, cfg.Now),
		Trades:   NewTradeCache(cfg.TradeTTL, cfg.Now),
		Research: NewResearchBook(),
	}
}

// Reset clears every cache.
func (r *Registry) Reset() {
	r.Markets.Clear()
	r.News.Clear()
	r.Trades.Clear()
	r.Research.Clear()
}
