// Package moderation classifies chat text into content categories, filters
// model output, and keeps the legal disclaimer on every answer.
package moderation

import (
	"regexp"
	"strings"

	"github.com/artpar/lexgate/domain/rule"
)

// Category names
const (
	CategoryHate            = "hate"
	CategoryViolence        = "violence"
	CategorySelfHarm        = "self-harm"
	CategorySexual          = "sexual"
	CategoryIllegalActivity = "illegal-activity"
	CategoryPersonalInfo    = "personal-info"
)

// CategoryResult reports one category of a verdict.
type CategoryResult struct {
	Name     string        `json:"name"`
	Flagged  bool          `json:"flagged"`
	Severity rule.Severity `json:"severity"`
}

// Verdict is a transient moderation outcome (value type).
type Verdict struct {
	Flagged    bool
	Categories []CategoryResult
	Blocked    bool
	Reason     string

	// Output only: the rewritten text, set when it differs from the input.
	Filtered *string
}

// FlaggedCategories returns the names of flagged categories.
func (v Verdict) FlaggedCategories() []string {
	var names []string
	for _, c := range v.Categories {
		if c.Flagged {
			names = append(names, c.Name)
		}
	}
	return names
}

var categoryRules = rule.Table{
	rule.New("hate-speech", CategoryHate, `\b(kill\s+all|exterminate|subhuman|inferior\s+race|ethnic\s+cleansing)\b`, rule.SeverityHigh, true),
	rule.New("violent-threat", CategoryViolence, `\b(i\s+will|i'm\s+going\s+to|gonna)\s+(kill|murder|shoot|stab|beat\s+up)\b`, rule.SeverityHigh, true),
	rule.New("self-harm", CategorySelfHarm, `\b(kill\s+myself|end\s+my\s+life|commit\s+suicide|hurt\s+myself|self[-\s]?harm)\b`, rule.SeverityHigh, true),
	rule.New("sexual-explicit", CategorySexual, `\b(explicit\s+sex|porn(ography)?|sexual\s+content\s+involving)\b`, rule.SeverityHigh, true),
	rule.New("illegal-activity", CategoryIllegalActivity, `\b(launder(ing)?\s+money|money\s+laundering|evade\s+taxes|tax\s+evasion\s+scheme|buy\s+drugs|sell\s+drugs|forge\s+(a\s+)?(document|signature|check))\b`, rule.SeverityMedium, false),
	rule.New("government-id", CategoryPersonalInfo, `\b\d{3}-\d{2}-\d{4}\b`, rule.SeverityMedium, false),
	rule.New("payment-card", CategoryPersonalInfo, `\b(?:\d[ -]?){13,16}\b`, rule.SeverityMedium, false),
	rule.New("password", CategoryPersonalInfo, `\bpassword\s*[:=]`, rule.SeverityMedium, false),
}

// ModerateInput classifies user input. Any hit flags; a high-severity hit blocks.
func ModerateInput(text string) Verdict {
	v := classify(text)
	for _, c := range v.Categories {
		if c.Flagged && c.Severity == rule.SeverityHigh {
			v.Blocked = true
			v.Reason = "Content flagged for " + c.Name
			break
		}
	}
	return v
}

func classify(text string) Verdict {
	hits := make(map[string]rule.Severity)
	for _, r := range categoryRules.Match(text) {
		if prev, ok := hits[r.Category]; !ok || prev != rule.SeverityHigh {
			hits[r.Category] = r.Severity
		}
	}

	var v Verdict
	for _, name := range categoryRules.Categories() {
		sev, flagged := hits[name]
		if !flagged {
			sev = severityOf(name)
		}
		v.Categories = append(v.Categories, CategoryResult{Name: name, Flagged: flagged, Severity: sev})
		if flagged {
			v.Flagged = true
		}
	}
	return v
}

func severityOf(category string) rule.Severity {
	for _, r := range categoryRules {
		if r.Category == category {
			return r.Severity
		}
	}
	return rule.SeverityMedium
}

// RedactionMessage replaces output that leaks the system prompt.
const RedactionMessage = "I'm sorry, but I can't share details about my configuration. How can I help with your legal question?"

var (
	profanity = regexp.MustCompile(`(?i)\b(damn|hell|crap|shit|fuck|bastard|bitch|ass)\b`)
	leak      = rule.Table{
		rule.New("instructions-are", "leak", `my\s+instructions\s+are`, rule.SeverityHigh, false),
		rule.New("was-instructed", "leak", `i\s+was\s+instructed\s+to`, rule.SeverityHigh, false),
		rule.New("system-prompt-says", "leak", `my\s+system\s+prompt\s+(says|is)`, rule.SeverityHigh, false),
	}
)

// ModerateOutput filters model output. It never blocks.
func ModerateOutput(text string) Verdict {
	v := classify(text)

	out := profanity.ReplaceAllStringFunc(text, func(w string) string {
		return strings.Repeat("*", len(w))
	})
	if _, ok := leak.First(out); ok {
		out = RedactionMessage
		v.Flagged = true
	}
	if out != text {
		v.Filtered = &out
	}
	return v
}

// Disclaimer is appended to answers that lack one.
const Disclaimer = "\n\n---\n*Disclaimer: This information is provided for general educational purposes only and does not constitute legal advice. Laws vary by jurisdiction and change over time. For advice about your specific situation, please consult a licensed attorney.*"

var disclaimerPattern = regexp.MustCompile(`(?i)(does\s+not\s+constitute\s+legal\s+advice|not\s+legal\s+advice|(consult|speak\s+with|talk\s+to)\s+(a|an|with\s+a)\s+(qualified\s+|licensed\s+)?(attorney|lawyer))`)

// HasDisclaimer reports whether text already carries a disclaimer or an
// attorney recommendation.
func HasDisclaimer(text string) bool {
	return disclaimerPattern.MatchString(text)
}

// EnsureLegalDisclaimer appends Disclaimer unless one is present.
func EnsureLegalDisclaimer(text string) string {
	if HasDisclaimer(text) {
		return text
	}
	return text + Disclaimer
}
