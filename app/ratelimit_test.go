package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/lexgate/adapters/clock"
	"github.com/artpar/lexgate/adapters/memory"
	"github.com/artpar/lexgate/app"
	"github.com/artpar/lexgate/domain/ratelimit"
)

func TestRateLimiter_NamespacesKeys(t *testing.T) {
	clk := clock.NewFake(baseTime)
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{Clock: clk})
	defer store.Close()
	cfg := ratelimit.Config{MaxRequests: 1, Window: time.Minute}

	chatLimiter := app.NewRateLimiter(app.LimiterChat, store, clk, cfg)
	guestLimiter := app.NewRateLimiter(app.LimiterGuest, store, clk, cfg)
	ctx := context.Background()

	if res, _ := chatLimiter.Check(ctx, "10.0.0.1"); !res.Allowed {
		t.Fatal("chat: first request denied")
	}
	if res, _ := guestLimiter.Check(ctx, "10.0.0.1"); !res.Allowed {
		t.Error("guest limiter shares the chat window")
	}
	if _, ok := store.Get("chat:10.0.0.1"); !ok {
		t.Error("expected key chat:10.0.0.1 in store")
	}
	if _, ok := store.Get("guest:10.0.0.1"); !ok {
		t.Error("expected key guest:10.0.0.1 in store")
	}
}

func TestRateLimiter_CheckN(t *testing.T) {
	clk := clock.NewFake(baseTime)
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{Clock: clk})
	defer store.Close()

	l := app.NewRateLimiter(app.LimiterChat, store, clk, ratelimit.Config{MaxRequests: 20, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res, _ := l.CheckN(ctx, "user-1", 3); !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	res, err := l.CheckN(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("CheckN error: %v", err)
	}
	if res.Allowed {
		t.Error("request 4 allowed with cap 3")
	}
	if res.RetryAfterSeconds() != 60 {
		t.Errorf("retry after = %d, want 60", res.RetryAfterSeconds())
	}
}

func TestRateLimiter_UpdateConfig(t *testing.T) {
	clk := clock.NewFake(baseTime)
	store := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{Clock: clk})
	defer store.Close()

	l := app.NewRateLimiter(app.LimiterGuest, store, clk, ratelimit.Config{MaxRequests: 5, Window: time.Minute})
	l.UpdateConfig(ratelimit.Config{MaxRequests: 1, Window: time.Minute})

	if got := l.Config().MaxRequests; got != 1 {
		t.Fatalf("max requests = %d, want 1", got)
	}
	ctx := context.Background()
	l.Check(ctx, "ip")
	if res, _ := l.Check(ctx, "ip"); res.Allowed {
		t.Error("second request allowed after lowering the cap")
	}
	if l.Name() != app.LimiterGuest {
		t.Errorf("name = %s, want guest", l.Name())
	}
}
