// Package ratelimit provides the fixed-window admission check used by every
// limiter instance. All functions are pure: state goes in, state comes out.
package ratelimit

import "time"

// WindowState is the per-identifier counter (value type).
type WindowState struct {
	Count   int       // Admitted requests in the current window
	ResetAt time.Time // When the current window ends
}

// Config holds limiter configuration (value type).
type Config struct {
	MaxRequests   int           // Admitted requests per window
	Window        time.Duration // Window length
	BlockDuration time.Duration // Grace period before an idle entry is swept
}

// Result is the outcome of a single check (value type).
type Result struct {
	Allowed    bool
	Remaining  int
	ResetIn    time.Duration // Time until the window resets
	RetryAfter time.Duration // Zero when allowed
}

// Check admits or rejects one request.
//
// A missing or elapsed window starts fresh with Count 1. A full window rejects
// without counting, so Count never exceeds MaxRequests. The caller persists the
// returned state.
func Check(state WindowState, cfg Config, now time.Time) (Result, WindowState) {
	if state.ResetAt.IsZero() || !now.Before(state.ResetAt) {
		state = WindowState{Count: 1, ResetAt: now.Add(cfg.Window)}
		return Result{
			Allowed:   true,
			Remaining: remaining(cfg.MaxRequests, state.Count),
			ResetIn:   cfg.Window,
		}, state
	}

	wait := state.ResetAt.Sub(now)
	if state.Count >= cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetIn:    wait,
			RetryAfter: wait,
		}, state
	}

	state.Count++
	return Result{
		Allowed:   true,
		Remaining: remaining(cfg.MaxRequests, state.Count),
		ResetIn:   wait,
	}, state
}

// Expired reports whether an entry can be garbage-collected.
func Expired(state WindowState, cfg Config, now time.Time) bool {
	if state.ResetAt.IsZero() {
		return true
	}
	return state.ResetAt.Add(cfg.BlockDuration).Before(now)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the Retry-After header.
func (r Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int(r.RetryAfter / time.Second)
	if r.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

func remaining(max, count int) int {
	if count >= max {
		return 0
	}
	return max - count
}
