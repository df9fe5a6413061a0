// Package validation screens and sanitizes user-supplied chat input.
// All functions are pure.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/artpar/lexgate/domain/chat"
)

// Defaults
const (
	DefaultMaxLength   = 10000
	DefaultMaxMessages = 50

	repeatThreshold = 21 // Runs at least this long are collapsed
	repeatKeep      = 5
)

// Result is the outcome of validating text or a message list (value type).
type Result struct {
	Valid     bool
	Sanitized string
	Warnings  []string
	Blocked   bool
	Reason    string

	// Set by ValidateMessages.
	Messages []chat.Message
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

func blocked(reason string) Result {
	return Result{Valid: false, Blocked: true, Reason: reason}
}

// ValidateInput checks a single piece of user text.
//
// Order: empty check, truncation (warning only), control-character stripping,
// injection rules, harmful-content rules, whitespace normalization.
func ValidateInput(text string, maxLength int) Result {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if strings.TrimSpace(text) == "" {
		return invalid("Input is empty")
	}

	var warnings []string
	if utf8.RuneCountInString(text) > maxLength {
		text = string([]rune(text)[:maxLength])
		warnings = append(warnings, fmt.Sprintf("Input truncated to %d characters", maxLength))
	}

	text = StripControl(text)

	if r, ok := injectionRules.FirstBlocking(text); ok {
		return blocked("Input contains disallowed instructions (" + r.Name + ")")
	}
	if r, ok := harmfulRules.FirstBlocking(text); ok {
		return blocked("Input requests harmful content (" + r.Name + ")")
	}

	text = strings.TrimSpace(Normalize(text))
	if text == "" {
		return invalid("Input is empty after sanitization")
	}

	return Result{
		Valid:     true,
		Sanitized: text,
		Warnings:  warnings,
	}
}

// ValidateMessages checks a raw JSON message list. Each message is validated
// independently; the first failure is returned as-is.
func ValidateMessages(raw []byte, maxMessages, maxLength int) Result {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return invalid("Messages must be an array")
	}
	if len(items) == 0 {
		return invalid("Messages array is empty")
	}
	if len(items) > maxMessages {
		return invalid(fmt.Sprintf("Too many messages (maximum %d)", maxMessages))
	}

	out := make([]chat.Message, 0, len(items))
	var warnings []string
	for i, item := range items {
		var m struct {
			Role    chat.Role       `json:"role"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(item, &m); err != nil {
			return invalid(fmt.Sprintf("Message %d is malformed", i))
		}
		if !m.Role.Valid() {
			return invalid(fmt.Sprintf("Message %d has invalid role", i))
		}
		var content string
		if err := json.Unmarshal(m.Content, &content); err != nil {
			return invalid(fmt.Sprintf("Message %d content must be a string", i))
		}

		res := ValidateInput(content, maxLength)
		if !res.Valid {
			return res
		}
		warnings = append(warnings, res.Warnings...)
		out = append(out, chat.Message{Role: m.Role, Content: res.Sanitized})
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return invalid("Messages could not be encoded")
	}

	return Result{
		Valid:     true,
		Sanitized: string(encoded),
		Warnings:  warnings,
		Messages:  out,
	}
}

// StripControl removes invisible control characters, keeping tab, LF and CR.
func StripControl(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// Normalize converts line endings to LF, collapses three or more newlines to
// two, and shortens long runs of one repeated character.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return collapseRepeats(s)
}

// collapseRepeats shortens any run of repeatThreshold or more identical runes
// to repeatKeep runes. RE2 has no backreferences, hence the manual scan.
func collapseRepeats(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i
		if n >= repeatThreshold {
			n = repeatKeep
		}
		for k := 0; k < n; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

// LastUserMessage returns the content of the final user turn.
func LastUserMessage(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			return msgs[i].Content, true
		}
	}
	return "", false
}
