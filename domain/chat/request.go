// Package chat provides request/response value types for the chat pipeline.
package chat

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is an accepted conversation role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversation turn (value type).
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Endpoint names the entry point a request arrived on.
type Endpoint string

const (
	EndpointChat   Endpoint = "chat"
	EndpointStream Endpoint = "stream"
	EndpointAsk    Endpoint = "ask"
)

// Request is a decoded chat request, extracted from HTTP (value type).
type Request struct {
	// Raw message list, validated by the pipeline.
	Messages    []byte
	Context     string
	MaxTokens   int
	Temperature *float64

	// Caller details
	Token    string
	RemoteIP string
	TraceID  string
}

// Usage reports token counts for one exchange.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is a completed single-shot answer (value type).
type Response struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached,omitempty"`
	Filtered bool   `json:"filtered,omitempty"`
}

// RateInfo carries limiter state for response headers.
type RateInfo struct {
	Remaining  int
	ResetIn    time.Duration
	RetryAfter int // Seconds, rounded up
}

// Defaults applied to upstream parameters.
const (
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
)

// ClampMaxTokens bounds a requested token cap to the plan cap. Zero or
// negative requests take the plan cap.
func ClampMaxTokens(requested, planCap int) int {
	if requested <= 0 || requested > planCap {
		return planCap
	}
	return requested
}

// ClampTemperature defaults a missing temperature and bounds it to [0,1].
func ClampTemperature(t *float64) float64 {
	if t == nil {
		return DefaultTemperature
	}
	switch {
	case *t < MinTemperature:
		return MinTemperature
	case *t > MaxTemperature:
		return MaxTemperature
	}
	return *t
}
