package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

type stubEmbedding struct {
	dims           int
	healthCheckErr error
	closed         bool
}

func (m *stubEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (m *stubEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return make([]float32, m.dims), nil
}

func (m *stubEmbedding) Dimensions() int                       { return m.dims }
func (m *stubEmbedding) Model() string                         { return "stub-embedding" }
func (m *stubEmbedding) HealthCheck(ctx context.Context) error { return m.healthCheckErr }

func (m *stubEmbedding) Close() error {
	m.closed = true
	return nil
}

type stubCompletion struct {
	pingErr error
	closed  bool
}

func (m *stubCompletion) Complete(ctx context.Context, prompt *domain.Prompt, opts domain.CompletionOptions) (*domain.Completion, error) {
	return &domain.Completion{Text: "ok"}, nil
}

func (m *stubCompletion) Model() string                  { return "stub-completion" }
func (m *stubCompletion) Ping(ctx context.Context) error { return m.pingErr }

func (m *stubCompletion) Close() error {
	m.closed = true
	return nil
}

func newTestServices() (*Services, *domain.RuntimeConfig) {
	config := domain.NewRuntimeConfig("memory", "memory")
	return NewServices(config, 16), config
}

func TestServices_EmbeddingService(t *testing.T) {
	services, config := newTestServices()

	if services.EmbeddingService() != nil {
		t.Error("expected nil embedding service initially")
	}

	stub := &stubEmbedding{dims: 16}
	if err := services.SetEmbeddingService(stub, domain.EmbeddingStrategyHash); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.EmbeddingAvailable() {
		t.Error("expected embedding to be available")
	}
	if config.EmbeddingStrategy() != domain.EmbeddingStrategyHash {
		t.Errorf("expected strategy hash, got %q", config.EmbeddingStrategy())
	}

	if err := services.SetEmbeddingService(nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable")
	}
	if !stub.closed {
		t.Error("expected old service to be closed")
	}
}

func TestServices_RejectsDimensionMismatch(t *testing.T) {
	services, config := newTestServices()

	err := services.SetEmbeddingService(&stubEmbedding{dims: 8}, domain.EmbeddingStrategyModel)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if services.EmbeddingService() != nil || config.EmbeddingAvailable() {
		t.Error("mismatched service must not be installed")
	}
}

func TestServices_CompletionService(t *testing.T) {
	services, config := newTestServices()

	stub := &stubCompletion{}
	services.SetCompletionService(stub)
	if !config.CompletionAvailable() {
		t.Error("expected completion to be available")
	}

	services.SetCompletionService(nil)
	if config.CompletionAvailable() {
		t.Error("expected completion to be unavailable")
	}
	if !stub.closed {
		t.Error("expected old service to be closed")
	}
}

func TestServices_ValidateAndSetEmbedding(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		svc     *stubEmbedding
		wantErr error
		closed  bool
	}{
		{name: "healthy", svc: &stubEmbedding{dims: 16}},
		{name: "health check fails", svc: &stubEmbedding{dims: 16, healthCheckErr: errors.New("connection refused")}, wantErr: domain.ErrUnavailable, closed: true},
		{name: "wrong dimension", svc: &stubEmbedding{dims: 4}, wantErr: domain.ErrInvalidInput, closed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services, _ := newTestServices()
			err := services.ValidateAndSetEmbedding(ctx, tt.svc, domain.EmbeddingStrategyModel)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.svc.closed != tt.closed {
				t.Errorf("closed = %v, want %v", tt.svc.closed, tt.closed)
			}
		})
	}
}

func TestServices_ValidateAndSetCompletion(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices()

	failing := &stubCompletion{pingErr: errors.New("401")}
	if err := services.ValidateAndSetCompletion(ctx, failing); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !failing.closed {
		t.Error("expected failed service to be closed")
	}

	if err := services.ValidateAndSetCompletion(ctx, &stubCompletion{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if services.CompletionService() == nil {
		t.Error("expected completion service to be set")
	}

	if err := services.ValidateAndSetCompletion(ctx, nil); err != nil {
		t.Errorf("unexpected error for nil service: %v", err)
	}
}

func TestServices_Close(t *testing.T) {
	services, config := newTestServices()

	emb := &stubEmbedding{dims: 16}
	comp := &stubCompletion{}
	_ = services.SetEmbeddingService(emb, domain.EmbeddingStrategyHash)
	services.SetCompletionService(comp)

	if err := services.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.closed || !comp.closed {
		t.Error("expected both services to be closed")
	}
	if config.CanSynthesize() {
		t.Error("expected no capabilities after close")
	}
}

func TestServices_ReplaceClosesOld(t *testing.T) {
	services, _ := newTestServices()

	old := &stubEmbedding{dims: 16}
	next := &stubEmbedding{dims: 16}
	_ = services.SetEmbeddingService(old, domain.EmbeddingStrategyHash)
	_ = services.SetEmbeddingService(next, domain.EmbeddingStrategyHash)

	if !old.closed {
		t.Error("expected old service to be closed when replaced")
	}
	if next.closed {
		t.Error("expected new service to remain open")
	}
}
