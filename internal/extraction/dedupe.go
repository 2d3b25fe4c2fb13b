package extraction

import (
	"strings"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// Deduplicator drops drafts whose type and body repeat an earlier draft of
// the same document, such as disclaimers printed on every page.
type Deduplicator struct {
	// MinLength is the minimum body length considered for deduplication
	MinLength int
}

// NewDeduplicator creates a deduplicator that ignores bodies shorter than minLength.
func NewDeduplicator(minLength int) *Deduplicator {
	return &Deduplicator{MinLength: minLength}
}

// Process returns drafts with repeats removed, keeping first occurrences in order.
func (d *Deduplicator) Process(drafts []domain.ConceptDraft) []domain.ConceptDraft {
	if len(drafts) <= 1 {
		return drafts
	}

	seen := make(map[string]bool, len(drafts))
	result := make([]domain.ConceptDraft, 0, len(drafts))

	for _, draft := range drafts {
		if len(draft.Body) < d.MinLength {
			result = append(result, draft)
			continue
		}

		key := draft.Type + "\x00" + strings.Join(strings.Fields(strings.ToLower(draft.Body)), " ")
		if !seen[key] {
			seen[key] = true
			result = append(result, draft)
		}
	}

	return result
}
