package extraction

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/m-mizutani/goerr/v2"
)

const (
	exactConfidence   = 0.85
	patternConfidence = 0.6
	maxLengthBonus    = 0.1
	fullBonusWords    = 40
	minSentenceWords  = 3
)

var (
	footerPattern    = regexp.MustCompile(`(?i)^(page\s+\d+(\s+of\s+\d+)?|\d+|-\s*\d+\s*-)$`)
	copyrightPattern = regexp.MustCompile(`(?i)(©|\(c\)\s*\d{4}|\bcopyright\b|all rights reserved)`)
	tocPattern       = regexp.MustCompile(`(?i)^(table of contents|contents)\b|\.{4,}\s*\d+$`)
	contentWord      = regexp.MustCompile(`\p{L}{4,}`)
)

// Extractor is a deterministic rule-based concept extractor.
type Extractor struct {
	rules       []Rule
	maxKeywords int
}

// Verify interface compliance
var _ driven.ConceptExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor for a parsed ruleset.
func NewExtractor(rs *Ruleset) *Extractor {
	maxKeywords := rs.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	return &Extractor{rules: rs.Rules, maxKeywords: maxKeywords}
}

// Extract returns the concept drafts found in the sentences owned by chunk.
// A sentence is owned when it starts after the chunk's overlap lead-in, so
// text shared by consecutive chunks is extracted once.
func (e *Extractor) Extract(chunk domain.Chunk, sourceType domain.SourceType) ([]domain.ConceptDraft, error) {
	if !sourceType.IsValid() {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "unknown source type", goerr.V("source_type", sourceType))
	}

	var (
		drafts  []domain.ConceptDraft
		current *draftBuilder
	)
	flush := func() {
		if current != nil {
			drafts = append(drafts, current.build(chunk, e.maxKeywords))
			current = nil
		}
	}

	for _, s := range splitSentences(chunk.Text) {
		if s.start < chunk.Overlap {
			continue
		}
		if isBoilerplate(s.text) {
			flush()
			continue
		}

		m, ok := e.match(s.text, sourceType)
		if !ok {
			flush()
			continue
		}
		if current != nil && current.rule == m.rule {
			current.add(s.text, m)
			continue
		}
		flush()
		current = newDraftBuilder(s.text, m)
	}
	flush()

	return drafts, nil
}

type match struct {
	rule    *Rule
	exact   bool
	phrases []string
}

// match finds the rule for a sentence. Exact phrase matches take precedence
// over pattern matches across the whole ruleset.
func (e *Extractor) match(sentence string, sourceType domain.SourceType) (match, bool) {
	lower := strings.ToLower(sentence)

	for i := range e.rules {
		r := &e.rules[i]
		if !r.AppliesTo(sourceType) {
			continue
		}
		var found []string
		for _, p := range r.Phrases {
			if containsPhrase(lower, p) {
				found = append(found, p)
			}
		}
		if len(found) > 0 {
			return match{rule: r, exact: true, phrases: found}, true
		}
	}

	for i := range e.rules {
		r := &e.rules[i]
		if !r.AppliesTo(sourceType) {
			continue
		}
		for _, re := range r.patterns {
			if re.MatchString(sentence) {
				return match{rule: r}, true
			}
		}
	}
	return match{}, false
}

type draftBuilder struct {
	rule      *Rule
	exact     bool
	sentences []string
	phrases   []string
}

func newDraftBuilder(sentence string, m match) *draftBuilder {
	b := &draftBuilder{rule: m.rule}
	b.add(sentence, m)
	return b
}

func (b *draftBuilder) add(sentence string, m match) {
	b.sentences = append(b.sentences, sentence)
	b.exact = b.exact || m.exact
	for _, p := range m.phrases {
		if !contains(b.phrases, p) {
			b.phrases = append(b.phrases, p)
		}
	}
}

func (b *draftBuilder) build(chunk domain.Chunk, maxKeywords int) domain.ConceptDraft {
	body := strings.Join(b.sentences, " ")
	return domain.ConceptDraft{
		Type:       b.rule.Type,
		Title:      b.rule.Topic,
		Body:       body,
		Keywords:   keywords(body, b.phrases, maxKeywords),
		Position:   chunk.Position,
		Confidence: confidence(body, b.exact),
		ChunkIndex: chunk.Index,
	}
}

func confidence(body string, exact bool) float64 {
	score := patternConfidence
	if exact {
		score = exactConfidence
	}
	words := len(strings.Fields(body))
	score += maxLengthBonus * math.Min(1, float64(words)/fullBonusWords)
	score = math.Min(1, score)
	return math.Round(score*100) / 100
}

// keywords lists matched phrases first, then distinct content words.
func keywords(body string, phrases []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, p := range phrases {
		if len(out) == limit {
			return out
		}
		out = append(out, p)
	}
	for _, w := range contentWord.FindAllString(strings.ToLower(body), -1) {
		if len(out) == limit {
			break
		}
		if stopWords[w] || contains(out, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isBoilerplate(sentence string) bool {
	if strings.HasPrefix(sentence, "#") {
		return true
	}
	if len(strings.Fields(sentence)) < minSentenceWords {
		return true
	}
	return footerPattern.MatchString(sentence) ||
		copyrightPattern.MatchString(sentence) ||
		tocPattern.MatchString(sentence)
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments must already be lower case.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; ; {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if isBoundary(text, start, true) && isBoundary(text, end, false) {
			return true
		}
		offset = start + 1
	}
}

func isBoundary(text string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(text[:pos])
	} else {
		if pos >= len(text) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "both": true, "could": true, "does": true,
	"each": true, "even": true, "every": true, "from": true, "have": true, "having": true,
	"here": true, "into": true, "just": true, "like": true, "more": true, "most": true,
	"much": true, "must": true, "only": true, "other": true, "over": true, "same": true,
	"should": true, "since": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true, "very": true,
	"want": true, "were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "will": true, "with": true, "would": true, "your": true, "yours": true,
}
