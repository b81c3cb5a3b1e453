package feed

import (
	"context"
	"sync"
	"time"

	"autotrader/internal/market"
)

type cacheEntry struct {
	bar     market.Bar
	expires time.Time
}

// Cached deduplicates feed calls per symbol within a TTL window, so
// repeated reads inside one polling interval hit the provider once.
type Cached struct {
	inner market.Feed
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	nowFn   func() time.Time
}

func NewCached(inner market.Feed, ttl time.Duration) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFn:   time.Now,
	}
}

func (c *Cached) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	now := c.nowFn()

	c.mu.Lock()
	if e, ok := c.entries[symbol]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.bar, nil
	}
	c.mu.Unlock()

	bar, err := c.inner.LatestBar(ctx, symbol)
	if err != nil {
		return market.Bar{}, err
	}

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{bar: bar, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return bar, nil
}

// Invalidate drops any cached bar for the symbol.
func (c *Cached) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.entries, symbol)
	c.mu.Unlock()
}
