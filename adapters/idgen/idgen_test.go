package idgen_test

import (
	"strings"
	"testing"

	"github.com/artpar/lexgate/adapters/idgen"
	"github.com/google/uuid"
)

func TestUUID_New(t *testing.T) {
	g := idgen.UUID{Prefix: "usg_"}

	id := g.New()
	if !strings.HasPrefix(id, "usg_") {
		t.Fatalf("New() = %q, want usg_ prefix", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "usg_")); err != nil {
		t.Errorf("New() suffix is not a UUID: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.New()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSequential_New(t *testing.T) {
	g := idgen.NewSequential("rec-")

	for _, want := range []string{"rec-1", "rec-2", "rec-3"} {
		if got := g.New(); got != want {
			t.Errorf("New() = %q, want %q", got, want)
		}
	}
}
