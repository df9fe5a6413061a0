package rule_test

import (
	"testing"

	"github.com/artpar/lexgate/domain/rule"
)

var table = rule.Table{
	rule.New("greeting", "polite", `\bhello\b`, rule.SeverityLow, false),
	rule.New("threat", "hostile", `\bdestroy\b`, rule.SeverityHigh, true),
	rule.New("farewell", "polite", `\bgoodbye\b`, rule.SeverityLow, false),
}

func TestRule_CaseInsensitive(t *testing.T) {
	r := rule.New("x", "c", `secret`, rule.SeverityMedium, false)
	if !r.Matches("TOP SECRET") {
		t.Error("expected case-insensitive match")
	}
}

func TestTable_First(t *testing.T) {
	got, ok := table.First("hello, I will destroy you")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Name != "greeting" {
		t.Errorf("First().Name = %q, want greeting", got.Name)
	}

	if _, ok := table.First("nothing here"); ok {
		t.Error("expected no match")
	}
}

func TestTable_FirstBlocking(t *testing.T) {
	got, ok := table.FirstBlocking("hello, I will destroy you")
	if !ok {
		t.Fatal("expected a blocking match")
	}
	if got.Name != "threat" {
		t.Errorf("FirstBlocking().Name = %q, want threat", got.Name)
	}

	if _, ok := table.FirstBlocking("hello and goodbye"); ok {
		t.Error("non-blocking rules must not be returned")
	}
}

func TestTable_Match(t *testing.T) {
	hits := table.Match("hello and goodbye")
	if len(hits) != 2 {
		t.Fatalf("len(Match()) = %d, want 2", len(hits))
	}
	if hits[0].Name != "greeting" || hits[1].Name != "farewell" {
		t.Errorf("Match() order = [%s %s], want [greeting farewell]", hits[0].Name, hits[1].Name)
	}
}

func TestTable_Categories(t *testing.T) {
	got := table.Categories()
	want := []string{"polite", "hostile"}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
