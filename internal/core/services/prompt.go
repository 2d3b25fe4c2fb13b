package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

// DefaultPromptBudget is the estimated token ceiling used when a request sets none
const DefaultPromptBudget = 800

const knowledgeHeader = "Relevant knowledge (cite by number):"

// PromptBuilder compresses a sales context and a retrieval bundle into a
// prompt that fits an estimated token budget. It holds no state and is safe
// for concurrent use.
type PromptBuilder struct{}

// NewPromptBuilder creates a prompt builder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build renders the prompt. Concepts are taken whole in descending score
// order until the next one would exceed the budget; the context description
// is always included even when no concept fits. Every included concept is
// cited in prompt order.
func (b *PromptBuilder) Build(salesCtx *domain.SalesContext, bundle *domain.RetrievalBundle, prefs domain.OutputPreferences) (*domain.Prompt, error) {
	if salesCtx == nil {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "sales context is required")
	}
	if err := salesCtx.Validate(); err != nil {
		return nil, goerr.Wrap(err, "sales context is incomplete", goerr.V(domain.KeyContextID, salesCtx.ID))
	}

	format := prefs.Format
	if format == "" {
		format = domain.OutputSummary
	}
	if !format.IsValid() {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "unknown output format",
			goerr.V(domain.KeyField, "format"), goerr.V("format", string(format)))
	}
	budget := prefs.PromptBudget
	if budget <= 0 {
		budget = DefaultPromptBudget
	}

	system := systemSection(format, prefs.Tone, salesCtx.Signals.Concerns)
	situation := situationSection(salesCtx)
	systemTokens := domain.EstimateTokens(system)

	var ranked []*domain.RetrievedItem
	if bundle != nil {
		ranked = make([]*domain.RetrievedItem, len(bundle.Items))
		copy(ranked, bundle.Items)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	}

	user := situation
	var citations []domain.Citation
	for _, item := range ranked {
		n := len(citations) + 1
		header := ""
		if n == 1 {
			header = "\n\n" + knowledgeHeader
		}
		candidate := user + header + "\n" + conceptEntry(n, item)
		if systemTokens+domain.EstimateTokens(candidate) > budget {
			break
		}
		user = candidate
		citations = append(citations, citationFor(n, item))
	}

	return &domain.Prompt{
		System:          system,
		User:            user,
		Citations:       citations,
		EstimatedTokens: systemTokens + domain.EstimateTokens(user),
		Dropped:         len(ranked) - len(citations),
	}, nil
}

func systemSection(format domain.OutputFormat, tone string, concerns []string) string {
	if strings.TrimSpace(tone) == "" {
		tone = format.DefaultTone()
	}

	var layout string
	switch format {
	case domain.OutputBulletPoints:
		layout = "Answer with three to five short bullet points a salesperson can act on."
	case domain.OutputScript:
		layout = "Answer with a short talk track the salesperson can say to the customer, in the first person."
	case domain.OutputObjectionPlan:
		layout = "Answer with an objection handling plan. For each objection, acknowledge it with empathy " +
			"and answer it with evidence, then suggest a question that moves the conversation forward."
		if objections := nonBlank(concerns); len(objections) > 0 {
			layout += " Objections to address: " + strings.Join(objections, "; ") + "."
		} else {
			layout += " No objections were stated; address the ones this customer is most likely to raise."
		}
	default:
		layout = "Answer with one concise paragraph summarising the recommended approach."
	}

	return fmt.Sprintf("You are a sales assistant. Give actionable, courteous and accurate recommendations "+
		"in a %s tone. %s Support claims with the numbered knowledge entries, citing them as [n]. "+
		"Never cite a number that is not listed.", tone, layout)
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func situationSection(c *domain.SalesContext) string {
	s := c.Signals
	var sb strings.Builder

	fmt.Fprintf(&sb, "Customer is interested in %s.", s.ProductInterest)
	if s.Stage != "" {
		fmt.Fprintf(&sb, " Sales stage: %s.", s.Stage)
	}
	if s.PersonalityTag != "" {
		fmt.Fprintf(&sb, " Personality: %s.", s.PersonalityTag)
	}
	if len(s.DecisionFactors) > 0 {
		fmt.Fprintf(&sb, "\nDecision drivers: %s.", strings.Join(s.DecisionFactors, ", "))
	}
	if s.Urgency != "" {
		fmt.Fprintf(&sb, " Urgency: %s.", s.Urgency)
	}
	if len(s.Concerns) > 0 {
		fmt.Fprintf(&sb, "\nPrimary concerns: %s.", strings.Join(s.Concerns, ", "))
	}
	if len(s.CompetitiveAlternatives) > 0 {
		fmt.Fprintf(&sb, "\nCompetitive alternatives: %s.", strings.Join(s.CompetitiveAlternatives, ", "))
	}
	fmt.Fprintf(&sb, "\nSituation: %s", strings.TrimSpace(c.Description))
	return sb.String()
}

func conceptEntry(n int, item *domain.RetrievedItem) string {
	return fmt.Sprintf("[%d] %s (source: %s, %s)\n%s",
		n, item.Concept.Title, item.Source.Title, item.Source.Type, item.Concept.Body)
}

func citationFor(n int, item *domain.RetrievedItem) domain.Citation {
	return domain.Citation{
		Number:    n,
		ConceptID: item.Concept.ID,
		SourceID:  item.Source.ID,
		Title:     item.Concept.Title,
		Body:      item.Concept.Body,
		Type:      item.Source.Type,
		Score:     item.Score,
		Position:  item.Concept.Position,
	}
}
