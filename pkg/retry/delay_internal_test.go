package retry

import (
	"testing"
	"time"
)

func TestPolicy_DelayBounds(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 30 * time.Second, Jitter: 0.25}

	for i := 0; i < 200; i++ {
		d := p.delay(0)
		if d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("delay(0) = %v, want within [750ms, 1250ms]", d)
		}
		if d%time.Millisecond != 0 {
			t.Fatalf("delay(0) = %v, want whole milliseconds", d)
		}
	}
	for i := 0; i < 50; i++ {
		if d := p.delay(20); d > 37500*time.Millisecond {
			t.Fatalf("delay(20) = %v, want <= 37.5s", d)
		}
	}
}

func TestPolicy_DelayGrowsWithoutJitter(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		if got := p.delay(i); got != w*time.Millisecond {
			t.Errorf("delay(%d) = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}
