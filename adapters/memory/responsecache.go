package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/artpar/lexgate/domain/cache"
	"github.com/artpar/lexgate/ports"
)

// ResponseCacheConfig configures a ResponseCache instance.
type ResponseCacheConfig struct {
	Name            string        // Instance name, used in metrics
	TTL             time.Duration // Default entry lifetime
	MaxSize         int           // Entries kept before score eviction
	CleanupInterval time.Duration // Expiry sweep period (default: 1h)
	Clock           ports.Clock
}

// CacheStats reports counters for one cache instance.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// ResponseCache maps fingerprints to answers, with lazy expiry on Get,
// a periodic expiry sweep, and score-based eviction past MaxSize.
type ResponseCache struct {
	cfg     ResponseCacheConfig
	mu      sync.Mutex
	entries map[string]*cache.Entry
	hits    int64
	misses  int64

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewResponseCache creates a cache and starts its sweep goroutine.
func NewResponseCache(cfg ResponseCacheConfig) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	c := &ResponseCache{
		cfg:     cfg,
		entries: make(map[string]*cache.Entry),
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Name returns the instance name.
func (c *ResponseCache) Name() string {
	return c.cfg.Name
}

// Get returns a live entry and counts the hit. Expired entries are deleted.
func (c *ResponseCache) Get(input, context string) (ports.CacheHit, bool) {
	key := cache.Fingerprint(input, context)
	now := c.cfg.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return ports.CacheHit{}, false
	}
	if e.Expired(now) {
		delete(c.entries, key)
		c.misses++
		return ports.CacheHit{}, false
	}

	e.HitCount++
	c.hits++
	return ports.CacheHit{Content: e.Response, Model: e.Model}, true
}

// Set stores a cacheable response. A zero ttl uses the instance default.
func (c *ResponseCache) Set(input, response, model, context string, ttl time.Duration) bool {
	if !cache.Cacheable(response) {
		return false
	}
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	now := c.cfg.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cache.Fingerprint(input, context)] = &cache.Entry{
		Response:  response,
		Model:     model,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if len(c.entries) > c.cfg.MaxSize {
		c.evictLocked(now)
	}
	return true
}

// evictLocked drops the lowest-scoring tenth of the entries.
func (c *ResponseCache) evictLocked(now time.Time) {
	type scored struct {
		key   string
		score float64
		at    time.Time
	}
	all := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, scored{key: k, score: e.Score(now), at: e.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		return all[i].at.Before(all[j].at)
	})
	for _, s := range all[:cache.EvictionCount(len(all))] {
		delete(c.entries, s.key)
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *ResponseCache) Sweep() int {
	now := c.cfg.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *ResponseCache) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// Stats returns current counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *ResponseCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ticker.Stop()
	})
	return nil
}

// Ensure interface compliance.
var _ ports.ResponseCache = (*ResponseCache)(nil)
