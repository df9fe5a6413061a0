package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/ports"
)

// Limiter names.
const (
	LimiterChat  = "chat"
	LimiterGuest = "guest"
)

// RateLimiter is one named limiter instance. Keys are prefixed with the
// name, so several instances can share a store.
type RateLimiter struct {
	name  string
	store ports.RateLimitStore
	clock ports.Clock
	cfg   atomic.Pointer[ratelimit.Config]
}

// NewRateLimiter creates a named limiter over store.
func NewRateLimiter(name string, store ports.RateLimitStore, clock ports.Clock, cfg ratelimit.Config) *RateLimiter {
	l := &RateLimiter{name: name, store: store, clock: clock}
	l.UpdateConfig(cfg)
	return l
}

// Name returns the limiter name.
func (l *RateLimiter) Name() string {
	return l.name
}

// Config returns the current limiter configuration.
func (l *RateLimiter) Config() ratelimit.Config {
	return *l.cfg.Load()
}

// UpdateConfig swaps the configuration. Safe for concurrent use.
func (l *RateLimiter) UpdateConfig(cfg ratelimit.Config) {
	l.cfg.Store(&cfg)
}

// Check admits or rejects one request for identifier.
func (l *RateLimiter) Check(ctx context.Context, identifier string) (ratelimit.Result, error) {
	return l.CheckN(ctx, identifier, 0)
}

// CheckN is Check with a per-call request cap. maxRequests <= 0 uses the
// configured cap.
func (l *RateLimiter) CheckN(ctx context.Context, identifier string, maxRequests int) (ratelimit.Result, error) {
	cfg := l.Config()
	if maxRequests > 0 {
		cfg.MaxRequests = maxRequests
	}
	res, err := l.store.CheckAndIncrement(ctx, l.name+":"+identifier, cfg, l.clock.Now())
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("%s limiter: %w", l.name, err)
	}
	return res, nil
}
