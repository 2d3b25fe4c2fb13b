package domain

import "time"

// OutputFormat selects how the generated recommendation is laid out
type OutputFormat string

const (
	OutputSummary      OutputFormat = "summary"
	OutputBulletPoints OutputFormat = "bullet_points"
	OutputScript       OutputFormat = "script"

	// OutputObjectionPlan answers each stated concern as an objection to handle
	OutputObjectionPlan OutputFormat = "objection_plan"
)

// IsValid returns true if this is a known output format
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputSummary, OutputBulletPoints, OutputScript, OutputObjectionPlan:
		return true
	default:
		return false
	}
}

// DefaultTone is the tone used when a request names none
func (f OutputFormat) DefaultTone() string {
	if f == OutputObjectionPlan {
		return "reassuring"
	}
	return "consultative"
}

// ReferenceKind describes how a recommendation uses a cited concept
type ReferenceKind string

const (
	ReferenceDirectQuote          ReferenceKind = "direct_quote"
	ReferencePrincipleApplication ReferenceKind = "principle_application"
	ReferenceSupportingEvidence   ReferenceKind = "supporting_evidence"
)

// SalesRecommendation is generated once per successful synthesis and never
// modified afterwards.
type SalesRecommendation struct {
	ID           string            `json:"id"`
	ContextID    string            `json:"context_id"`
	Text         string            `json:"text"`
	OutputFormat OutputFormat      `json:"output_format"`
	Tone         string            `json:"tone,omitempty"`
	Confidence   float64           `json:"confidence"`
	Usage        TokenUsage        `json:"usage"`
	Model        string            `json:"model,omitempty"`
	Attempts     int               `json:"attempts"`
	References   []SourceReference `json:"references"`
	CreatedAt    time.Time         `json:"created_at"`
}

// SourceReference links a recommendation back to a cited concept and source
type SourceReference struct {
	RecommendationID string        `json:"recommendation_id"`
	SourceID         string        `json:"source_id"`
	ConceptID        string        `json:"concept_id,omitempty"`
	Kind             ReferenceKind `json:"kind"`
	Score            float64       `json:"score"`
	Position         string        `json:"position,omitempty"`
}

// OutputPreferences are the caller's choices for a synthesis request
type OutputPreferences struct {
	Format           OutputFormat     `json:"format"`
	Tone             string           `json:"tone,omitempty"`
	Limit            int              `json:"limit,omitempty"`
	PromptBudget     int              `json:"prompt_budget,omitempty"` // estimated tokens
	Filters          RetrievalFilters `json:"filters,omitempty"`
	RequireCitations bool             `json:"require_citations,omitempty"`
}

// DefaultOutputPreferences returns sensible defaults
func DefaultOutputPreferences() OutputPreferences {
	return OutputPreferences{
		Format:       OutputSummary,
		Tone:         "consultative",
		Limit:        8,
		PromptBudget: 800,
	}
}
