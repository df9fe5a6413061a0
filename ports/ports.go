// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/lexgate/domain/chat"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Authentication Ports
// -----------------------------------------------------------------------------

// Identity is the caller resolved from a bearer token.
type Identity struct {
	ID    string
	Email string
	Name  string
	Plan  plan.Tier
}

// ErrInvalidToken is returned for missing, malformed or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// RateLimitStore holds limiter windows. CheckAndIncrement must be atomic per key.
type RateLimitStore interface {
	CheckAndIncrement(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error)
}

// CacheHit is a cached answer returned by ResponseCache.Get.
type CacheHit struct {
	Content string
	Model   string
}

// ResponseCache stores single-turn answers keyed by normalized input and context.
type ResponseCache interface {
	Get(input, context string) (CacheHit, bool)
	// Set reports whether the response was stored.
	Set(input, response, model, context string, ttl time.Duration) bool
}

// UsageStore holds usage records.
type UsageStore interface {
	// Append adds a record, trimming the oldest records past capacity.
	Append(ctx context.Context, r usage.Record) error

	// Query returns records for a user within [start, end].
	Query(ctx context.Context, userID string, start, end time.Time) ([]usage.Record, error)
}

// -----------------------------------------------------------------------------
// Upstream Model Ports
// -----------------------------------------------------------------------------

// CompletionRequest is a model call (value type).
type CompletionRequest struct {
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
	Messages    []chat.Message
}

// Completion is a finished non-streaming model answer.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// StreamEventKind classifies decoded upstream stream events.
type StreamEventKind int

const (
	StreamStart StreamEventKind = iota // Carries Model and InputTokens
	StreamDelta                        // Carries Text
	StreamUsage                        // Carries OutputTokens
	StreamStop
	StreamError // Upstream error payload; carries Message
)

// StreamEvent is one decoded upstream stream event.
type StreamEvent struct {
	Kind         StreamEventKind
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Message      string
}

// Stream yields upstream events in order. Next returns io.EOF at the end of
// the body; any other error is a transport failure.
type Stream interface {
	Next() (StreamEvent, error)
	Close() error
}

// LLM is the upstream chat-completion API.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}
