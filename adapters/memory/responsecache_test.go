package memory_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/artpar/lexgate/adapters/clock"
	"github.com/artpar/lexgate/adapters/memory"
)

var answer = strings.Repeat("A non-compete agreement restricts later employment. ", 3)

func newCache(t *testing.T, fake *clock.Fake, maxSize int) *memory.ResponseCache {
	t.Helper()
	c := memory.NewResponseCache(memory.ResponseCacheConfig{
		Name:    "test",
		TTL:     time.Hour,
		MaxSize: maxSize,
		Clock:   fake,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResponseCache_SetGet(t *testing.T) {
	c := newCache(t, clock.NewFake(baseTime), 100)

	if !c.Set("What is a non-compete?", answer, "model-a", "general", 0) {
		t.Fatal("Set() = false, want true")
	}

	hit, ok := c.Get("  what is a NON-COMPETE? ", "general")
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if hit.Content != answer || hit.Model != "model-a" {
		t.Errorf("Get() = %+v", hit)
	}

	if _, ok := c.Get("What is a non-compete?", "faq"); ok {
		t.Error("different context must miss")
	}
	if _, ok := c.Get("never stored", "general"); ok {
		t.Error("unset key must miss")
	}
}

func TestResponseCache_RefusesLowValue(t *testing.T) {
	c := newCache(t, clock.NewFake(baseTime), 100)

	tests := []struct {
		name     string
		response string
	}{
		{"short", "Too short."},
		{"uncertain", "I'm not sure, but " + answer},
		{"oversized", strings.Repeat("x", 10001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c.Set(tt.name, tt.response, "m", "general", 0) {
				t.Error("Set() = true, want false")
			}
			if _, ok := c.Get(tt.name, "general"); ok {
				t.Error("Get() hit, want miss")
			}
		})
	}
}

func TestResponseCache_LazyExpiry(t *testing.T) {
	fake := clock.NewFake(baseTime)
	c := newCache(t, fake, 100)

	c.Set("q", answer, "m", "general", 10*time.Minute)
	fake.Advance(9 * time.Minute)
	if _, ok := c.Get("q", "general"); !ok {
		t.Fatal("expected hit before TTL")
	}

	fake.Advance(time.Minute)
	if _, ok := c.Get("q", "general"); ok {
		t.Fatal("expected miss at TTL")
	}
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after lazy expiry", s.Entries)
	}
}

func TestResponseCache_DefaultTTL(t *testing.T) {
	fake := clock.NewFake(baseTime)
	c := newCache(t, fake, 100)

	c.Set("q", answer, "m", "general", 0)
	fake.Advance(59 * time.Minute)
	if _, ok := c.Get("q", "general"); !ok {
		t.Fatal("expected hit inside default TTL")
	}
	fake.Advance(2 * time.Minute)
	if _, ok := c.Get("q", "general"); ok {
		t.Fatal("expected miss past default TTL")
	}
}

func TestResponseCache_Sweep(t *testing.T) {
	fake := clock.NewFake(baseTime)
	c := newCache(t, fake, 100)

	c.Set("a", answer, "m", "general", time.Minute)
	c.Set("b", answer, "m", "general", time.Hour)
	fake.Advance(2 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("Entries = %d, want 1", s.Entries)
	}
}

func TestResponseCache_EvictsLowestScore(t *testing.T) {
	fake := clock.NewFake(baseTime)
	c := newCache(t, fake, 10)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("q%d", i), answer, "m", "general", 0)
	}
	// Every entry but q0 gets a hit, so q0 has the lowest score.
	for i := 1; i < 10; i++ {
		c.Get(fmt.Sprintf("q%d", i), "general")
	}

	fake.Advance(time.Second)
	c.Set("q10", answer, "m", "general", 0)

	if s := c.Stats(); s.Entries != 10 {
		t.Errorf("Entries = %d, want 10", s.Entries)
	}
	if _, ok := c.Get("q0", "general"); ok {
		t.Error("lowest-scoring entry q0 should have been evicted")
	}
	if _, ok := c.Get("q5", "general"); !ok {
		t.Error("q5 should survive eviction")
	}
}

func TestResponseCache_Stats(t *testing.T) {
	c := newCache(t, clock.NewFake(baseTime), 100)

	c.Set("q", answer, "m", "general", 0)
	c.Get("q", "general")
	c.Get("q", "general")
	c.Get("other", "general")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("Stats() = %+v, want 2 hits, 1 miss, 1 entry", s)
	}
	if c.Name() != "test" {
		t.Errorf("Name() = %q, want test", c.Name())
	}
}
