package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/lexgate/adapters/clock"
	"github.com/artpar/lexgate/adapters/memory"
	"github.com/artpar/lexgate/domain/ratelimit"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestShardedRateLimitStore_Defaults(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{})
	defer store.Close()

	if store.Len() != 0 {
		t.Errorf("new store should be empty, got %d entries", store.Len())
	}
}

func TestShardedRateLimitStore_NPlusOne(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{})
	defer store.Close()
	ctx := context.Background()
	cfg := ratelimit.Config{MaxRequests: 5, Window: time.Minute}

	now := baseTime
	for i := 1; i <= 5; i++ {
		res, err := store.CheckAndIncrement(ctx, "user-1", cfg, now)
		if err != nil {
			t.Fatalf("CheckAndIncrement() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied, want allowed", i)
		}
		if res.Remaining != 5-i {
			t.Errorf("request %d remaining = %d, want %d", i, res.Remaining, 5-i)
		}
		now = now.Add(time.Second)
	}

	res, _ := store.CheckAndIncrement(ctx, "user-1", cfg, now)
	if res.Allowed {
		t.Fatal("request 6 allowed, want denied")
	}
	if res.RetryAfter != 55*time.Second {
		t.Errorf("retryAfter = %v, want 55s", res.RetryAfter)
	}

	state, ok := store.Get("user-1")
	if !ok || state.Count != 5 {
		t.Errorf("stored count = %d, want 5", state.Count)
	}

	res, _ = store.CheckAndIncrement(ctx, "user-1", cfg, baseTime.Add(time.Minute))
	if !res.Allowed {
		t.Error("expected allow once the window has reset")
	}
}

func TestShardedRateLimitStore_IndependentKeys(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{NumShards: 4})
	defer store.Close()
	ctx := context.Background()
	cfg := ratelimit.Config{MaxRequests: 1, Window: time.Minute}

	if res, _ := store.CheckAndIncrement(ctx, "chat:a", cfg, baseTime); !res.Allowed {
		t.Error("chat:a first request denied")
	}
	if res, _ := store.CheckAndIncrement(ctx, "guest:a", cfg, baseTime); !res.Allowed {
		t.Error("guest:a first request denied")
	}
	if res, _ := store.CheckAndIncrement(ctx, "chat:a", cfg, baseTime); res.Allowed {
		t.Error("chat:a second request allowed")
	}
}

func TestShardedRateLimitStore_Sweep(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{})
	defer store.Close()
	ctx := context.Background()

	short := ratelimit.Config{MaxRequests: 5, Window: time.Minute, BlockDuration: time.Minute}
	long := ratelimit.Config{MaxRequests: 5, Window: time.Minute, BlockDuration: time.Hour}

	store.CheckAndIncrement(ctx, "short", short, baseTime)
	store.CheckAndIncrement(ctx, "long", long, baseTime)

	if removed := store.Sweep(baseTime.Add(90 * time.Second)); removed != 0 {
		t.Errorf("Sweep() inside block duration removed %d, want 0", removed)
	}
	if removed := store.Sweep(baseTime.Add(3 * time.Minute)); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, ok := store.Get("long"); !ok {
		t.Error("long entry should survive the sweep")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestShardedRateLimitStore_BackgroundSweep(t *testing.T) {
	fake := clock.NewFake(baseTime)
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{
		CleanupInterval: 10 * time.Millisecond,
		Clock:           fake,
	})
	defer store.Close()

	store.CheckAndIncrement(context.Background(), "k", ratelimit.Config{MaxRequests: 1, Window: time.Second}, baseTime)
	fake.Advance(time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 0 {
		t.Error("background sweep did not remove the expired entry")
	}
}

func TestShardedRateLimitStore_ConcurrentNeverOverAdmits(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{})
	defer store.Close()
	ctx := context.Background()
	cfg := ratelimit.Config{MaxRequests: 50, Window: time.Minute}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := store.CheckAndIncrement(ctx, "hot", cfg, baseTime)
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 50 {
		t.Errorf("allowed = %d, want 50", allowed.Load())
	}
}

func TestShardedRateLimitStore_ManyKeys(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{NumShards: 8})
	defer store.Close()
	cfg := ratelimit.Config{MaxRequests: 1, Window: time.Minute}

	for i := 0; i < 100; i++ {
		store.CheckAndIncrement(context.Background(), fmt.Sprintf("user-%d", i), cfg, baseTime)
	}
	if store.Len() != 100 {
		t.Errorf("Len() = %d, want 100", store.Len())
	}
}

func TestShardedRateLimitStore_CloseTwice(t *testing.T) {
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{})
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
