// Package plan maps subscription tiers to request limits.
package plan

import "strings"

// Tier is a subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierFree, TierBasic, TierPremium, TierEnterprise}

// ParseTier maps a claim value to a tier. Unknown values map to free.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t
		}
	}
	return TierFree
}

// Limits are the numeric limits a tier grants (immutable value type).
type Limits struct {
	RequestsPerMinute     int    `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requestsPerMinute"`
	MaxTokensPerRequest   int    `yaml:"max_tokens_per_request" toml:"max_tokens_per_request" json:"maxTokensPerRequest"`
	MaxConversationLength int    `yaml:"max_conversation_length" toml:"max_conversation_length" json:"maxConversationLength"`
	Model                 string `yaml:"model" toml:"model" json:"model"`
	DailyTokenQuota       int64  `yaml:"daily_token_quota" toml:"daily_token_quota" json:"dailyTokenQuota"`
}

// Models used by the default table.
const (
	ModelHaiku  = "claude-3-5-haiku-20241022"
	ModelSonnet = "claude-sonnet-4-20250514"
)

// Table maps tiers to limits.
type Table map[Tier]Limits

// Default is the built-in limits table.
var Default = Table{
	TierFree:       {RequestsPerMinute: 10, MaxTokensPerRequest: 2048, MaxConversationLength: 10, Model: ModelHaiku, DailyTokenQuota: 50_000},
	TierBasic:      {RequestsPerMinute: 20, MaxTokensPerRequest: 4096, MaxConversationLength: 20, Model: ModelSonnet, DailyTokenQuota: 200_000},
	TierPremium:    {RequestsPerMinute: 40, MaxTokensPerRequest: 8192, MaxConversationLength: 30, Model: ModelSonnet, DailyTokenQuota: 1_000_000},
	TierEnterprise: {RequestsPerMinute: 100, MaxTokensPerRequest: 8192, MaxConversationLength: 50, Model: ModelSonnet, DailyTokenQuota: 5_000_000},
}

// LimitsFor returns the limits for t, falling back to the free tier.
func (tb Table) LimitsFor(t Tier) Limits {
	if l, ok := tb[t]; ok {
		return l
	}
	if l, ok := tb[TierFree]; ok {
		return l
	}
	return Default[TierFree]
}

// Merge returns a copy of tb with non-zero override fields applied.
func (tb Table) Merge(overrides map[string]Limits) Table {
	out := make(Table, len(tb))
	for k, v := range tb {
		out[k] = v
	}
	for name, o := range overrides {
		t := Tier(strings.ToLower(name))
		l := out[t]
		if o.RequestsPerMinute > 0 {
			l.RequestsPerMinute = o.RequestsPerMinute
		}
		if o.MaxTokensPerRequest > 0 {
			l.MaxTokensPerRequest = o.MaxTokensPerRequest
		}
		if o.MaxConversationLength > 0 {
			l.MaxConversationLength = o.MaxConversationLength
		}
		if o.Model != "" {
			l.Model = o.Model
		}
		if o.DailyTokenQuota != 0 {
			l.DailyTokenQuota = o.DailyTokenQuota
		}
		out[t] = l
	}
	return out
}
