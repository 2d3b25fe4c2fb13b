package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
)

var _ driving.SynthesisService = (*SynthesisService)(nil)

const (
	defaultMinDescriptionWords = 8
	quoteWindowWords           = 6
)

// SynthesisService produces recommendations: retrieve, build the prompt,
// complete, then persist the recommendation and its references together.
type SynthesisService struct {
	contexts        driven.ContextStore
	recommendations driven.RecommendationStore
	retrieval       driving.RetrievalService
	prompts         *PromptBuilder
	completion      *CompletionClient
	guardrails      *Guardrails
	minWords        int
	completionOpts  domain.CompletionOptions
	logger          *slog.Logger
}

// SynthesisConfig holds dependencies for SynthesisService.
type SynthesisConfig struct {
	ContextStore        driven.ContextStore
	RecommendationStore driven.RecommendationStore
	Retrieval           driving.RetrievalService
	PromptBuilder       *PromptBuilder
	Completion          *CompletionClient

	// Guardrails masks generated text; nil disables masking
	Guardrails *Guardrails

	// MinDescriptionWords is the shortest description that may be answered
	// without any cited knowledge
	MinDescriptionWords int

	CompletionOptions *domain.CompletionOptions
	Logger            *slog.Logger
}

// NewSynthesisService creates a new synthesis service.
func NewSynthesisService(cfg SynthesisConfig) *SynthesisService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompts := cfg.PromptBuilder
	if prompts == nil {
		prompts = NewPromptBuilder()
	}
	minWords := cfg.MinDescriptionWords
	if minWords <= 0 {
		minWords = defaultMinDescriptionWords
	}
	opts := domain.DefaultCompletionOptions()
	if cfg.CompletionOptions != nil {
		opts = *cfg.CompletionOptions
	}
	return &SynthesisService{
		contexts:        cfg.ContextStore,
		recommendations: cfg.RecommendationStore,
		retrieval:       cfg.Retrieval,
		prompts:         prompts,
		completion:      cfg.Completion,
		guardrails:      cfg.Guardrails,
		minWords:        minWords,
		completionOpts:  opts,
		logger:          logger,
	}
}

// Synthesize generates and stores a recommendation for the sales context.
// A context without an ID is validated and stored first; a context with an
// ID that is already stored is used as stored. No recommendation is written
// unless every step succeeds.
func (s *SynthesisService) Synthesize(ctx context.Context, salesCtx *domain.SalesContext, prefs domain.OutputPreferences) (*domain.SalesRecommendation, error) {
	if salesCtx == nil {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "sales context is required")
	}
	if prefs.Format == "" {
		prefs.Format = domain.OutputSummary
	}
	if !prefs.Format.IsValid() {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "unknown output format",
			goerr.V(domain.KeyField, "format"), goerr.V("format", string(prefs.Format)))
	}
	if strings.TrimSpace(prefs.Tone) == "" {
		prefs.Tone = prefs.Format.DefaultTone()
	}

	stored, err := s.resolveContext(ctx, salesCtx)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("context_id", stored.ID)

	bundle, err := s.retrieval.Retrieve(ctx, domain.RetrievalQuery{
		Text:    stored.QueryText(),
		Filters: prefs.Filters,
		Limit:   prefs.Limit,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "retrieval failed", goerr.V(domain.KeyContextID, stored.ID))
	}

	prompt, err := s.prompts.Build(stored, bundle, prefs)
	if err != nil {
		return nil, err
	}
	if len(prompt.Citations) == 0 {
		if prefs.RequireCitations {
			return nil, goerr.Wrap(domain.ErrInsufficientContext, "no knowledge fits the request",
				goerr.V(domain.KeyContextID, stored.ID), goerr.V("retrieved", bundle.Len()))
		}
		if words := len(strings.Fields(stored.Description)); words < s.minWords {
			return nil, goerr.Wrap(domain.ErrInsufficientContext, "description too short to answer without knowledge",
				goerr.V(domain.KeyContextID, stored.ID), goerr.V("words", words), goerr.V("min_words", s.minWords))
		}
	}

	completion, err := s.completion.Complete(ctx, prompt, s.completionOpts)
	if err != nil {
		logger.Warn("completion failed", "error", err)
		return nil, goerr.Wrap(err, "recommendation not generated", goerr.V(domain.KeyContextID, stored.ID))
	}

	text, masked := s.guardrails.Filter(strings.TrimSpace(completion.Text))
	if masked > 0 {
		logger.Info("masked generated text", "replacements", masked)
	}

	rec := &domain.SalesRecommendation{
		ID:           domain.GenerateID(),
		ContextID:    stored.ID,
		Text:         text,
		OutputFormat: prefs.Format,
		Tone:         prefs.Tone,
		Confidence:   confidenceOf(completion, prompt),
		Usage:        usageOf(completion, prompt),
		Model:        completion.Model,
		Attempts:     completion.Attempts,
		CreatedAt:    time.Now(),
	}
	rec.References = referencesFor(rec.ID, text, prompt.Citations)

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "synthesis cancelled before save", goerr.V(domain.KeyContextID, stored.ID))
	}
	if err := s.recommendations.Save(ctx, rec); err != nil {
		return nil, goerr.Wrap(err, "failed to save recommendation", goerr.V(domain.KeyContextID, stored.ID))
	}

	logger.Info("recommendation generated",
		"recommendation_id", rec.ID,
		"citations", len(prompt.Citations),
		"dropped", prompt.Dropped,
		"attempts", rec.Attempts,
		"total_tokens", rec.Usage.TotalTokens,
	)
	return rec, nil
}

// Get retrieves a stored recommendation with its references.
func (s *SynthesisService) Get(ctx context.Context, id string) (*domain.SalesRecommendation, error) {
	rec, err := s.recommendations.Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get recommendation", goerr.V("recommendation_id", id))
	}
	return rec, nil
}

func (s *SynthesisService) resolveContext(ctx context.Context, salesCtx *domain.SalesContext) (*domain.SalesContext, error) {
	if salesCtx.ID != "" {
		stored, err := s.contexts.Get(ctx, salesCtx.ID)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, goerr.Wrap(err, "failed to load sales context", goerr.V(domain.KeyContextID, salesCtx.ID))
		}
	}

	if err := salesCtx.Validate(); err != nil {
		return nil, goerr.Wrap(err, "sales context needs a description and a product interest",
			goerr.V(domain.KeyField, "description"))
	}

	created := *salesCtx
	if created.ID == "" {
		created.ID = domain.GenerateID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	if err := s.contexts.Create(ctx, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to store sales context", goerr.V(domain.KeyContextID, created.ID))
	}
	return &created, nil
}

// confidenceOf prefers the provider's own confidence and falls back to the
// mean relevance of the cited concepts.
func confidenceOf(c *domain.Completion, p *domain.Prompt) float64 {
	v := p.MeanCitationScore()
	if c.Confidence != nil {
		v = *c.Confidence
	}
	return min(max(v, 0), 1)
}

func usageOf(c *domain.Completion, p *domain.Prompt) domain.TokenUsage {
	if c.Usage.TotalTokens > 0 {
		return c.Usage
	}
	u := domain.TokenUsage{
		PromptTokens:     p.EstimatedTokens,
		CompletionTokens: domain.EstimateTokens(c.Text),
		Estimated:        true,
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// referencesFor attributes the recommendation to every cited concept. The
// kind records how the text uses it.
func referencesFor(recID, text string, citations []domain.Citation) []domain.SourceReference {
	refs := make([]domain.SourceReference, 0, len(citations))
	normText := normaliseWords(text)
	for _, c := range citations {
		refs = append(refs, domain.SourceReference{
			RecommendationID: recID,
			SourceID:         c.SourceID,
			ConceptID:        c.ConceptID,
			Kind:             referenceKind(normText, c),
			Score:            c.Score,
			Position:         c.Position.String(),
		})
	}
	return refs
}

func referenceKind(normText string, c domain.Citation) domain.ReferenceKind {
	if quotes(normText, c.Body) {
		return domain.ReferenceDirectQuote
	}
	if c.Type == domain.SourceTypePsychology {
		return domain.ReferencePrincipleApplication
	}
	return domain.ReferenceSupportingEvidence
}

// quotes reports whether normText repeats a run of consecutive words from
// body. Bodies shorter than the run length must appear whole.
func quotes(normText, body string) bool {
	words := strings.Fields(normaliseWords(body))
	if len(words) == 0 || normText == "" {
		return false
	}
	if len(words) <= quoteWindowWords {
		return strings.Contains(normText, strings.Join(words, " "))
	}
	for i := 0; i+quoteWindowWords <= len(words); i++ {
		if strings.Contains(normText, strings.Join(words[i:i+quoteWindowWords], " ")) {
			return true
		}
	}
	return false
}

// normaliseWords lowercases text and keeps only letters, digits and single
// spaces so punctuation and line breaks do not defeat quote matching.
func normaliseWords(text string) string {
	var sb strings.Builder
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}
