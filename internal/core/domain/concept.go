package domain

import (
	"fmt"
	"time"
)

// Position locates a chunk or concept inside its source document
type Position struct {
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// String renders the position as a short human-readable reference
func (p Position) String() string {
	switch {
	case p.Page > 0 && p.Section != "":
		return fmt.Sprintf("p.%d, %s", p.Page, p.Section)
	case p.Page > 0:
		return fmt.Sprintf("p.%d", p.Page)
	default:
		return p.Section
	}
}

// Chunk is a contiguous slice of source text used during ingestion only.
// Start and End are byte offsets into the normalised document; the first
// Overlap bytes of Text repeat the tail of the previous chunk.
type Chunk struct {
	SourceID string   `json:"source_id"`
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Overlap  int      `json:"overlap"`
	Position Position `json:"position"`
	Atomic   bool     `json:"atomic,omitempty"` // unsplittable segment such as a table
}

// ConceptDraft is an extracted concept that has no id or vector yet
type ConceptDraft struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Keywords   []string `json:"keywords"`
	Position   Position `json:"position"`
	Confidence float64  `json:"confidence"`
	ChunkIndex int      `json:"chunk_index"`
}

// EmbeddingText is the text handed to the embedding provider for a draft
func (d *ConceptDraft) EmbeddingText() string {
	if d.Title == "" {
		return d.Body
	}
	return d.Title + "\n" + d.Body
}

// KnowledgeConcept is a discrete labeled unit of extracted knowledge.
// Concepts are immutable once written and are removed only with their source.
type KnowledgeConcept struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Keywords   []string  `json:"keywords"`
	Embedding  []float32 `json:"-"`
	Position   Position  `json:"position"`
	Confidence float64   `json:"confidence"`
	Generation int64     `json:"generation"` // ingestion run that produced it
	CreatedAt  time.Time `json:"created_at"`
}

// NewKnowledgeConcept turns a draft into a concept owned by sourceID
func NewKnowledgeConcept(sourceID string, generation int64, draft ConceptDraft, embedding []float32) *KnowledgeConcept {
	return &KnowledgeConcept{
		ID:         GenerateID(),
		SourceID:   sourceID,
		Type:       draft.Type,
		Title:      draft.Title,
		Body:       draft.Body,
		Keywords:   draft.Keywords,
		Embedding:  embedding,
		Position:   draft.Position,
		Confidence: draft.Confidence,
		Generation: generation,
		CreatedAt:  time.Now(),
	}
}

// VectorEntry is the index-side representation of a concept
type VectorEntry struct {
	ConceptID string    `json:"concept_id"`
	SourceID  string    `json:"source_id"`
	Vector    []float32 `json:"vector"`
	Seq       int64     `json:"seq"` // insertion order, assigned by the index
}

// VectorMatch is a single search hit
type VectorMatch struct {
	ConceptID string  `json:"concept_id"`
	SourceID  string  `json:"source_id"`
	Score     float64 `json:"score"`
	Seq       int64   `json:"seq"`
}
