package usage_test

import (
	"testing"

	"github.com/artpar/lexgate/domain/usage"
)

func TestPriceTable_Normalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude-3-5-haiku-20241022", "claude-3-5-haiku"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4"},
		{"claude-sonnet-4", "claude-sonnet-4"},
		{"claude-unknown-20250101", "claude-unknown-20250101"},
		{"claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"gpt", "gpt"},
	}
	for _, tt := range tests {
		if got := usage.DefaultPricing.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriceTable_Cost(t *testing.T) {
	got := usage.DefaultPricing.Cost("claude-opus-4-20250514", 1_000_000, 1_000_000)
	if got != 90 {
		t.Errorf("Cost(opus) = %v, want 90", got)
	}

	if got := usage.DefaultPricing.Cost("mystery-model", 1000, 1000); got != 0 {
		t.Errorf("Cost(unknown) = %v, want 0", got)
	}
}
