// Package rule provides tagged regular-expression rule tables shared by the
// input validator and the content moderator.
package rule

import "regexp"

// Severity weights a rule hit.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rule is a single named pattern (value type).
type Rule struct {
	Name     string
	Category string
	Pattern  *regexp.Regexp
	Severity Severity
	Blocking bool
}

// New compiles a rule. Patterns are case-insensitive. Panics on a bad pattern,
// so tables are built at package init.
func New(name, category, pattern string, severity Severity, blocking bool) Rule {
	return Rule{
		Name:     name,
		Category: category,
		Pattern:  regexp.MustCompile("(?i)" + pattern),
		Severity: severity,
		Blocking: blocking,
	}
}

// Matches reports whether text hits the rule.
func (r Rule) Matches(text string) bool {
	return r.Pattern.MatchString(text)
}

// Table is an ordered rule list evaluated uniformly.
type Table []Rule

// First returns the first rule that matches text.
func (t Table) First(text string) (Rule, bool) {
	for _, r := range t {
		if r.Matches(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// FirstBlocking returns the first blocking rule that matches text.
func (t Table) FirstBlocking(text string) (Rule, bool) {
	for _, r := range t {
		if r.Blocking && r.Matches(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// Match returns every rule that matches text, in table order.
func (t Table) Match(text string) []Rule {
	var hits []Rule
	for _, r := range t {
		if r.Matches(text) {
			hits = append(hits, r)
		}
	}
	return hits
}

// Categories returns the distinct categories in table order.
func (t Table) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}
