package domain

import (
	"strings"
	"time"
)

// SalesStage is where the customer is in the sales process
type SalesStage string

const (
	SalesStageDiscovery    SalesStage = "discovery"
	SalesStagePresentation SalesStage = "presentation"
	SalesStageObjection    SalesStage = "objection"
	SalesStageClosing      SalesStage = "closing"
)

// CustomerSignals captures what is known about the customer for a request
type CustomerSignals struct {
	DecisionFactors         []string   `json:"decision_factors,omitempty"`
	PersonalityTag          string     `json:"personality_tag,omitempty"`
	Concerns                []string   `json:"concerns,omitempty"`
	ProductInterest         string     `json:"product_interest"`
	Stage                   SalesStage `json:"stage,omitempty"`
	Urgency                 string     `json:"urgency,omitempty"`
	CompetitiveAlternatives []string   `json:"competitive_alternatives,omitempty"`
}

// SalesContext describes one sales situation. A new request always creates a
// new context; stored contexts are never modified.
type SalesContext struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id,omitempty"`
	Signals     CustomerSignals `json:"signals"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the fields required to build a prompt
func (c *SalesContext) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(c.Signals.ProductInterest) == "" {
		return ErrInvalidInput
	}
	return nil
}

// QueryText composes the retrieval query for this context
func (c *SalesContext) QueryText() string {
	parts := []string{c.Signals.ProductInterest}
	parts = append(parts, c.Signals.Concerns...)
	parts = append(parts, c.Signals.DecisionFactors...)
	parts = append(parts, c.Description)

	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ". ")
}
