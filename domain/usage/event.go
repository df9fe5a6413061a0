// Package usage provides usage records, aggregation, pricing and quota checks.
// All functions are pure - no side effects.
package usage

import "time"

// Record is a single request accounting entry (immutable value type).
// Every terminal pipeline outcome produces one, successful or not.
type Record struct {
	ID           string
	UserID       string
	Timestamp    time.Time
	Endpoint     string
	InputTokens  int
	OutputTokens int
	Model        string
	Cached       bool
	LatencyMs    int64
	Success      bool
	ErrorCode    string // Empty on success
}

// TotalTokens returns input plus output tokens.
func (r Record) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Summary represents aggregated usage for a period (value type).
type Summary struct {
	UserID         string    `json:"userId"`
	PeriodStart    time.Time `json:"periodStart"`
	PeriodEnd      time.Time `json:"periodEnd"`
	TotalRequests  int       `json:"totalRequests"`
	InputTokens    int       `json:"inputTokens"`
	OutputTokens   int       `json:"outputTokens"`
	TotalTokens    int       `json:"totalTokens"`
	CachedRequests int       `json:"cachedRequests"`
	FailedRequests int       `json:"failedRequests"`
	AvgLatencyMs   int64     `json:"avgLatencyMs"`
	EstimatedCost  float64   `json:"estimatedCost"`
}

// QuotaStatus compares today's token usage with the plan's daily quota.
type QuotaStatus struct {
	WithinQuota  bool  `json:"withinQuota"`
	CurrentUsage int64 `json:"currentUsage"`
	Limit        int64 `json:"limit"`
}
