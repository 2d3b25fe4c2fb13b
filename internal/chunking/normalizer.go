package chunking

import (
	"strings"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// WhitespaceNormalizer cleans extracted document text before chunking.
// Paragraph breaks and form feeds (page breaks) survive normalisation so the
// chunker can still resolve positions.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ driven.TextNormaliser = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Normalise collapses runs of spaces, trims lines and limits blank lines to one.
func (w *WhitespaceNormalizer) Normalise(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	pages := strings.Split(text, "\f")
	kept := pages[:0]
	for _, page := range pages {
		if page = normalisePage(page); page != "" {
			kept = append(kept, page)
		}
	}
	return strings.Join(kept, "\n\f")
}

func normalisePage(page string) string {
	lines := strings.Split(page, "\n")
	for i, line := range lines {
		for strings.Contains(line, "  ") {
			line = strings.ReplaceAll(line, "  ", " ")
		}
		lines[i] = strings.TrimRight(strings.TrimLeft(line, " "), " \t")
	}
	page = strings.Join(lines, "\n")

	for strings.Contains(page, "\n\n\n") {
		page = strings.ReplaceAll(page, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(page)
}
