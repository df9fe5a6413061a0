// Package cache provides the pure parts of the response cache: key
// derivation, cacheability rules and eviction scoring.
package cache

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// Storage bounds for cached responses, in characters.
const (
	MinResponseLength = 50
	MaxResponseLength = 10000
)

// Entry is a cached answer (value type).
type Entry struct {
	Response  string
	Model     string
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int
}

// Expired reports whether the entry is past its TTL.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Score is a recency-weighted hit rate: hits / (ageHours + 1).
func (e Entry) Score(now time.Time) float64 {
	age := now.Sub(e.CreatedAt).Hours()
	if age < 0 {
		age = 0
	}
	return float64(e.HitCount) / (age + 1)
}

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s?]`)
)

// Normalize lower-cases, strips punctuation other than '?', collapses
// whitespace and trims.
func Normalize(input string) string {
	s := strings.ToLower(input)
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint derives the cache key from the normalized input and context.
func Fingerprint(input, context string) string {
	sum := blake2b.Sum256([]byte(context + "\x00" + Normalize(input)))
	return hex.EncodeToString(sum[:])
}

var uncertainty = []string{
	"i'm not sure",
	"i am not sure",
	"i'm not certain",
	"i cannot",
	"i can't",
	"i don't know",
	"i do not know",
	"could you clarify",
	"can you clarify",
	"could you provide more",
	"i'm unable to",
	"i am unable to",
}

// Cacheable reports whether a response is worth reusing.
func Cacheable(response string) bool {
	n := utf8.RuneCountInString(response)
	if n < MinResponseLength || n > MaxResponseLength {
		return false
	}
	lower := strings.ToLower(strings.ReplaceAll(response, "’", "'"))
	for _, p := range uncertainty {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// EvictionCount is how many entries to drop once size exceeds maxSize:
// a tenth of the store, at least one.
func EvictionCount(size int) int {
	n := size / 10
	if n < 1 {
		n = 1
	}
	return n
}
