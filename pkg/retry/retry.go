// Package retry runs operations with exponential backoff and jitter,
// retrying only failures a policy classifies as transient.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures retries.
type Policy struct {
	MaxRetries        int           // Retries after the first attempt
	InitialDelay      time.Duration // Delay before the first retry
	MaxDelay          time.Duration // Cap applied before jitter
	Multiplier        float64
	Jitter            float64 // Uniform +/- fraction, e.g. 0.25
	RetryableStatuses []int
	RetryableMessages []string // Case-insensitive substrings

	// OnRetry, if set, is called before each retry sleep.
	OnRetry func(err error, delay time.Duration)
}

// DefaultPolicy is used for generic transient failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2,
		Jitter:            0.25,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
		RetryableMessages: []string{"econnreset", "etimedout", "connection reset", "connection refused", "timeout", "overloaded", "rate_limit", "unexpected eof"},
	}
}

// UpstreamPolicy is tuned for the model API: fewer retries, a lower cap, and
// the upstream's overload status.
func UpstreamPolicy() Policy {
	p := DefaultPolicy()
	p.MaxRetries = 2
	p.MaxDelay = 10 * time.Second
	p.RetryableStatuses = append(p.RetryableStatuses, 529)
	p.RetryableMessages = append(p.RetryableMessages, "overloaded_error", "api_error")
	return p
}

type statusCoder interface {
	StatusCode() int
}

// Retryable reports whether err is transient under p. Context cancellation
// is never retryable.
func (p Policy) Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		for _, s := range p.RetryableStatuses {
			if sc.StatusCode() == s {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range p.RetryableMessages {
		if strings.Contains(msg, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// msRounding rounds each delay to the nearest millisecond.
type msRounding struct {
	backoff.BackOff
}

func (r msRounding) NextBackOff() time.Duration {
	d := r.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	return d.Round(time.Millisecond)
}

// newBackOff builds the unbounded delay schedule: min(initial*mult^k, max)
// jittered by +/- Jitter.
func (p Policy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return msRounding{BackOff: b}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = d.Jitter
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// delay returns a sample of the delay before retry number attempt (0-indexed).
func (p Policy) delay(attempt int) time.Duration {
	b := p.withDefaults().newBackOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// DoValue runs fn until it succeeds, fails permanently, exhausts MaxRetries,
// or ctx is done. The last error is returned.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.MaxRetries)), ctx)

	op := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}
	return backoff.RetryNotifyWithData(op, b, notify)
}

// Do is DoValue for operations without a result.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
