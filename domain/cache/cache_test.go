package cache_test

import (
	"strings"
	"testing"
	"time"

	"github.com/artpar/lexgate/domain/cache"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  What is a Non-Compete?  ", "what is a noncompete?"},
		{"what   is\n\ta lease", "what is a lease"},
		{"Hello, world!!!", "hello world"},
		{"¿Qué es?", "qué es?"},
	}
	for _, tt := range tests {
		if got := cache.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := cache.Fingerprint("What is a non-compete agreement?", "general")
	b := cache.Fingerprint("  what is a NON-COMPETE agreement?", "general")
	if a != b {
		t.Error("equivalent inputs should share a fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("len(fingerprint) = %d, want 64", len(a))
	}

	if a == cache.Fingerprint("What is a non-compete agreement?", "faq") {
		t.Error("context must namespace the fingerprint")
	}
	if a == cache.Fingerprint("What is a non-compete agreement", "general") {
		t.Error("question mark must be significant")
	}
}

func TestCacheable(t *testing.T) {
	long := strings.Repeat("A lease is a binding contract. ", 5)
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"ok", long, true},
		{"too short", "Too short.", false},
		{"exactly min", strings.Repeat("x", 50), true},
		{"exactly max", strings.Repeat("x", 10000), true},
		{"too long", strings.Repeat("x", 10001), false},
		{"not sure", "I'm not sure about this one. " + long, false},
		{"curly apostrophe", "I’m not sure about this one. " + long, false},
		{"cannot", long + " I cannot help further.", false},
		{"clarify", "Could you clarify what state you live in? " + long, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.Cacheable(tt.in); got != tt.want {
				t.Errorf("Cacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_ExpiredAndScore(t *testing.T) {
	e := cache.Entry{
		CreatedAt: baseTime,
		ExpiresAt: baseTime.Add(time.Hour),
		HitCount:  6,
	}

	if e.Expired(baseTime.Add(59 * time.Minute)) {
		t.Error("entry should not be expired before TTL")
	}
	if !e.Expired(baseTime.Add(time.Hour)) {
		t.Error("entry should be expired at TTL")
	}

	if got := e.Score(baseTime); got != 6 {
		t.Errorf("Score(age 0) = %v, want 6", got)
	}
	if got := e.Score(baseTime.Add(2 * time.Hour)); got != 2 {
		t.Errorf("Score(age 2h) = %v, want 2", got)
	}
}

func TestEvictionCount(t *testing.T) {
	tests := []struct{ size, want int }{
		{1, 1}, {9, 1}, {11, 1}, {20, 2}, {1001, 100},
	}
	for _, tt := range tests {
		if got := cache.EvictionCount(tt.size); got != tt.want {
			t.Errorf("EvictionCount(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}
