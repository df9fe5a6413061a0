// Package memory provides process-local implementations of the store ports.
// State is volatile and per-instance.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/ports"
)

type rateLimitEntry struct {
	state ratelimit.WindowState
	cfg   ratelimit.Config
}

// rateLimitShard is a single shard of the rate limit store.
type rateLimitShard struct {
	mu      sync.Mutex
	entries map[string]rateLimitEntry
}

// ShardedRateLimitStore is a sharded in-memory rate limit store.
// Keys hash to shards so unrelated identifiers do not contend on one lock.
type ShardedRateLimitStore struct {
	shards    []*rateLimitShard
	numShards int
	clock     ports.Clock
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// ShardedRateLimitConfig configures the sharded rate limit store.
type ShardedRateLimitConfig struct {
	NumShards       int           // Number of shards (default: 32)
	CleanupInterval time.Duration // Sweep period (default: 1h)
	Clock           ports.Clock   // Time source for sweeps (default: system clock)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewShardedRateLimitStore creates the store and starts its sweep goroutine.
func NewShardedRateLimitStore(cfg ShardedRateLimitConfig) *ShardedRateLimitStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	s := &ShardedRateLimitStore{
		shards:    make([]*rateLimitShard, cfg.NumShards),
		numShards: cfg.NumShards,
		clock:     cfg.Clock,
		done:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &rateLimitShard{entries: make(map[string]rateLimitEntry)}
	}

	s.ticker = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

func (s *ShardedRateLimitStore) getShard(key string) *rateLimitShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// CheckAndIncrement runs the window check for key under the shard lock.
func (s *ShardedRateLimitStore) CheckAndIncrement(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	result, state := ratelimit.Check(shard.entries[key].state, cfg, now)
	shard.entries[key] = rateLimitEntry{state: state, cfg: cfg}
	return result, nil
}

// Get returns the stored window for key.
func (s *ShardedRateLimitStore) Get(key string) (ratelimit.WindowState, bool) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	e, ok := shard.entries[key]
	return e.state, ok
}

func (s *ShardedRateLimitStore) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.Sweep(s.clock.Now())
		case <-s.done:
			return
		}
	}
}

// Sweep deletes entries whose reset time plus block duration has passed.
// It returns the number of entries removed.
func (s *ShardedRateLimitStore) Sweep(now time.Time) int {
	removed := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, e := range shard.entries {
			if ratelimit.Expired(e.state, e.cfg, now) {
				delete(shard.entries, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *ShardedRateLimitStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.ticker.Stop()
	})
	return nil
}

// Len returns the total number of entries across all shards.
func (s *ShardedRateLimitStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*ShardedRateLimitStore)(nil)
