package domain

// ConflictPolicy decides which of two contradictory concepts survives when
// different sources carry a concept of the same type and title.
type ConflictPolicy string

const (
	ConflictKeepAll          ConflictPolicy = "none"
	ConflictPreferConfidence ConflictPolicy = "confidence"
	ConflictPreferRecent     ConflictPolicy = "recency"
)

// IsValid returns true if this is a known policy
func (p ConflictPolicy) IsValid() bool {
	switch p {
	case ConflictKeepAll, ConflictPreferConfidence, ConflictPreferRecent:
		return true
	default:
		return false
	}
}

// RetrievalFilters restrict which concepts may appear in a bundle
type RetrievalFilters struct {
	SourceTypes   []SourceType `json:"source_types,omitempty"`
	MinConfidence float64      `json:"min_confidence,omitempty"`
	MinScore      float64      `json:"min_score,omitempty"`
}

// AllowsSourceType reports whether t passes the source type filter
func (f RetrievalFilters) AllowsSourceType(t SourceType) bool {
	if len(f.SourceTypes) == 0 {
		return true
	}
	for _, allowed := range f.SourceTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// RetrievalQuery is either query text or a precomputed query vector
type RetrievalQuery struct {
	Text    string           `json:"text,omitempty"`
	Vector  []float32        `json:"vector,omitempty"`
	Filters RetrievalFilters `json:"filters,omitempty"`
	Limit   int              `json:"limit,omitempty"`
}

// DefaultRetrievalLimit and MaxRetrievalLimit bound bundle sizes
const (
	DefaultRetrievalLimit = 8
	MaxRetrievalLimit     = 100
)

// RetrievedItem is one ranked concept with its source metadata
type RetrievedItem struct {
	Concept *KnowledgeConcept `json:"concept"`
	Source  *KnowledgeSource  `json:"source"`
	Score   float64           `json:"score"`
}

// RetrievalBundle is the ranked, transient result of one retrieval query
type RetrievalBundle struct {
	Query string           `json:"query,omitempty"`
	Items []*RetrievedItem `json:"items"`
}

// Len returns the number of items in the bundle
func (b *RetrievalBundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Items)
}

// MeanScore returns the average relevance score, zero for an empty bundle
func (b *RetrievalBundle) MeanScore() float64 {
	if b.Len() == 0 {
		return 0
	}
	var sum float64
	for _, item := range b.Items {
		sum += item.Score
	}
	return sum / float64(len(b.Items))
}
