package services

import (
	"regexp"
	"sort"
	"strings"
)

const maskText = "****"

// DefaultDenylist is masked from generated recommendations unless configured otherwise
var DefaultDenylist = []string{"damn", "hell"}

// Guardrails masks deny-listed words in generated text. Matching is
// case-insensitive on whole words, so "hello" is left alone.
type Guardrails struct {
	pattern *regexp.Regexp
}

// NewGuardrails compiles a masker for the given words. An empty list yields
// a guardrail that passes text through unchanged.
func NewGuardrails(denylist []string) *Guardrails {
	words := make([]string, 0, len(denylist))
	for _, w := range denylist {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(words) == 0 {
		return &Guardrails{}
	}
	// Longest first so overlapping entries mask the whole word.
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return &Guardrails{pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)}
}

// Filter returns text with every deny-listed word replaced by a mask, and
// the number of replacements made.
func (g *Guardrails) Filter(text string) (string, int) {
	if g == nil || g.pattern == nil || text == "" {
		return text, 0
	}
	n := 0
	out := g.pattern.ReplaceAllStringFunc(text, func(string) string {
		n++
		return maskText
	})
	return out, n
}
