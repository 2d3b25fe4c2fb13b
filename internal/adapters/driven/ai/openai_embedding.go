package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

// DefaultEmbeddingModel is used when no model is configured
const DefaultEmbeddingModel = "text-embedding-3-small"

const (
	// defaultEmbedBatch bounds the inputs sent in one request. A large
	// source yields hundreds of concepts.
	defaultEmbedBatch = 128
	// embedParallelism bounds concurrent batch requests per Embed call
	embedParallelism = 4
)

// modelNativeDimensions is used when no dimension is configured
var modelNativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedding embeds concept text through an OpenAI-compatible
// /embeddings endpoint, including Ollama's. The requested dimension is
// pinned to the index dimension and every returned vector is checked
// against it.
type OpenAIEmbedding struct {
	openAIClient
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAIEmbedding builds the service from settings
func NewOpenAIEmbedding(settings *domain.EmbeddingSettings) (*OpenAIEmbedding, error) {
	if settings.Provider.RequiresAPIKey() && settings.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is required", domain.ErrInvalidInput, settings.Provider)
	}

	e := &OpenAIEmbedding{
		openAIClient: newOpenAIClient(settings.Provider, settings.APIKey, settings.BaseURL, time.Minute),
		model:        settings.Model,
		dimensions:   settings.Dimensions,
		batchSize:    defaultEmbedBatch,
	}
	if e.model == "" {
		e.model = DefaultEmbeddingModel
	}
	if e.dimensions <= 0 {
		e.dimensions = modelNativeDimensions[e.model]
	}
	if e.dimensions <= 0 {
		e.dimensions = 1536
	}
	return e, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns one vector per text in input order. Inputs beyond one batch
// are split and sent concurrently; the first failing batch fails the call.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			return e.embedBatch(gctx, texts[start:end], out[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatch fills dst, which has one slot per text
func (e *OpenAIEmbedding) embedBatch(ctx context.Context, texts []string, dst [][]float32) error {
	req := embeddingRequest{Input: texts, Model: e.model, EncodingFormat: "float"}
	// ada-002 rejects the dimensions parameter
	if e.model != "text-embedding-ada-002" {
		req.Dimensions = e.dimensions
	}

	var resp embeddingResponse
	if err := e.postJSON(ctx, "/embeddings", req, &resp); err != nil {
		return err
	}

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(dst) {
			continue
		}
		if len(d.Embedding) != e.dimensions {
			return e.permanent(200, fmt.Sprintf("embedding has %d dimensions, expected %d", len(d.Embedding), e.dimensions))
		}
		dst[d.Index] = d.Embedding
	}
	for i, v := range dst {
		if v == nil {
			return e.permanent(200, fmt.Sprintf("no embedding returned for input %d", i))
		}
	}
	return nil
}

func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedding) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedding) Model() string { return e.model }

// HealthCheck embeds a short probe string
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "ping")
	return err
}

func (e *OpenAIEmbedding) Close() error {
	e.close()
	return nil
}
