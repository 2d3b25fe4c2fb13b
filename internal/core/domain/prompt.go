package domain

import "strings"

// Citation is a concept included in a prompt, in prompt order
type Citation struct {
	Number    int        `json:"number"`
	ConceptID string     `json:"concept_id"`
	SourceID  string     `json:"source_id"`
	Title     string     `json:"title"`
	Body      string     `json:"-"`
	Type      SourceType `json:"source_type"`
	Score     float64    `json:"score"`
	Position  Position   `json:"position"`
}

// Prompt is the structured input for a completion call
type Prompt struct {
	System          string     `json:"system"`
	User            string     `json:"user"`
	Citations       []Citation `json:"citations"`
	EstimatedTokens int        `json:"estimated_tokens"`
	Dropped         int        `json:"dropped"` // bundle items left out to honour the budget
}

// MeanCitationScore averages the relevance of the cited concepts
func (p *Prompt) MeanCitationScore() float64 {
	if len(p.Citations) == 0 {
		return 0
	}
	var sum float64
	for _, c := range p.Citations {
		sum += c.Score
	}
	return sum / float64(len(p.Citations))
}

// EstimateTokens approximates the token count of text without a tokenizer:
// roughly four characters per token blended with the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := int(0.25*float64(len(text)) + 0.5*float64(len(strings.Fields(text))))
	if n < 1 {
		return 1
	}
	return n
}
