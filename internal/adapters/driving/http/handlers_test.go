package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/swaggo/swag"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
)

// Mock services for testing

type mockIngestionService struct {
	submitFn   func(ctx context.Context, req driving.SubmitSourceRequest) (*domain.KnowledgeSource, error)
	requeueFn  func(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	getFn      func(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	listFn     func(ctx context.Context) ([]*domain.KnowledgeSource, error)
	conceptsFn func(ctx context.Context, id string) ([]*domain.KnowledgeConcept, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockIngestionService) Submit(ctx context.Context, req driving.SubmitSourceRequest) (*domain.KnowledgeSource, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) Requeue(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	if m.requeueFn != nil {
		return m.requeueFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) Ingest(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) List(ctx context.Context) ([]*domain.KnowledgeSource, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockIngestionService) Concepts(ctx context.Context, id string) ([]*domain.KnowledgeConcept, error) {
	if m.conceptsFn != nil {
		return m.conceptsFn(ctx, id)
	}
	return nil, nil
}

func (m *mockIngestionService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockRetrievalService struct {
	retrieveFn func(ctx context.Context, q domain.RetrievalQuery) (*domain.RetrievalBundle, error)
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, q domain.RetrievalQuery) (*domain.RetrievalBundle, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, q)
	}
	return &domain.RetrievalBundle{Items: []*domain.RetrievedItem{}}, nil
}

type mockSynthesisService struct {
	synthesizeFn func(ctx context.Context, c *domain.SalesContext, p domain.OutputPreferences) (*domain.SalesRecommendation, error)
	getFn        func(ctx context.Context, id string) (*domain.SalesRecommendation, error)
}

func (m *mockSynthesisService) Synthesize(ctx context.Context, c *domain.SalesContext, p domain.OutputPreferences) (*domain.SalesRecommendation, error) {
	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, c, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSynthesisService) Get(ctx context.Context, id string) (*domain.SalesRecommendation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(ing *mockIngestionService, ret *mockRetrievalService, syn *mockSynthesisService, checks map[string]Pinger) http.Handler {
	if ing == nil {
		ing = &mockIngestionService{}
	}
	if ret == nil {
		ret = &mockRetrievalService{}
	}
	if syn == nil {
		syn = &mockSynthesisService{}
	}
	cfg := DefaultConfig()
	cfg.Version = "test"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, ing, ret, syn, checks).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHealthAndVersion(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	rr := do(t, h, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	rr = do(t, h, "GET", "/version", "")
	var v VersionResponse
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if v.Version != "test" {
		t.Errorf("expected version 'test', got %q", v.Version)
	}
}

type stubDoc string

func (d stubDoc) ReadDoc() string { return string(d) }

func TestOpenAPIHandler(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	// Register panics on a second call for the same name
	if _, err := swag.ReadDoc(); err != nil {
		rr := do(t, h, "GET", "/api/v1/openapi.json", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 before registration, got %d", rr.Code)
		}
		swag.Register(swag.Name, stubDoc(`{"swagger":"2.0"}`))
	}

	rr := do(t, h, "GET", "/api/v1/openapi.json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"swagger":"2.0"}` {
		t.Errorf("unexpected document %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestReadyHandler(t *testing.T) {
	healthy := pingFunc(func(ctx context.Context) error { return nil })
	broken := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	rr := do(t, newTestServer(nil, nil, nil, map[string]Pinger{"database": healthy, "queue": healthy}), "GET", "/ready", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	rr = do(t, newTestServer(nil, nil, nil, map[string]Pinger{"database": healthy, "queue": broken}), "GET", "/ready", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	var resp ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Checks["database"] != "ok" || resp.Checks["queue"] != "connection refused" {
		t.Errorf("unexpected checks: %v", resp.Checks)
	}
}

func TestSubmitSource(t *testing.T) {
	var got driving.SubmitSourceRequest
	ing := &mockIngestionService{
		submitFn: func(ctx context.Context, req driving.SubmitSourceRequest) (*domain.KnowledgeSource, error) {
			got = req
			return &domain.KnowledgeSource{ID: "src-1", Title: req.Title, Type: req.Type, Status: domain.StatusQueued}, nil
		},
	}
	h := newTestServer(ing, nil, nil, nil)

	rr := do(t, h, "POST", "/api/v1/sources", `{"title":"SPIN Selling","type":"psychology","text":"Ask implication questions."}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Title != "SPIN Selling" || got.Type != domain.SourceTypePsychology || got.Text == "" {
		t.Errorf("request not passed through: %+v", got)
	}

	var source domain.KnowledgeSource
	if err := json.NewDecoder(rr.Body).Decode(&source); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if source.ID != "src-1" || source.Status != domain.StatusQueued {
		t.Errorf("unexpected source: %+v", source)
	}
}

func TestSubmitSource_InvalidBody(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	rr := do(t, h, "POST", "/api/v1/sources", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestSourceRoutes(t *testing.T) {
	var deleted, requeued string
	ing := &mockIngestionService{
		getFn: func(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
			if id != "src-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.KnowledgeSource{ID: id, Status: domain.StatusProcessed, ConceptCount: 2}, nil
		},
		listFn: func(ctx context.Context) ([]*domain.KnowledgeSource, error) {
			return []*domain.KnowledgeSource{{ID: "src-1"}, {ID: "src-2"}}, nil
		},
		conceptsFn: func(ctx context.Context, id string) ([]*domain.KnowledgeConcept, error) {
			return []*domain.KnowledgeConcept{{ID: "c-1", SourceID: id, Title: "Implication questions"}}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
		requeueFn: func(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
			requeued = id
			return &domain.KnowledgeSource{ID: id, Status: domain.StatusQueued}, nil
		},
	}
	h := newTestServer(ing, nil, nil, nil)

	if rr := do(t, h, "GET", "/api/v1/sources/src-1", ""); rr.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/api/v1/sources/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get missing: expected 404, got %d", rr.Code)
	}

	rr := do(t, h, "GET", "/api/v1/sources", "")
	var sources []domain.KnowledgeSource
	if err := json.NewDecoder(rr.Body).Decode(&sources); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(sources))
	}

	rr = do(t, h, "GET", "/api/v1/sources/src-1/concepts", "")
	var concepts []domain.KnowledgeConcept
	if err := json.NewDecoder(rr.Body).Decode(&concepts); err != nil {
		t.Fatalf("failed to decode concepts: %v", err)
	}
	if len(concepts) != 1 || concepts[0].SourceID != "src-1" {
		t.Errorf("unexpected concepts: %+v", concepts)
	}

	if rr := do(t, h, "POST", "/api/v1/sources/src-1/ingest", ""); rr.Code != http.StatusAccepted {
		t.Errorf("requeue: expected 202, got %d", rr.Code)
	}
	if requeued != "src-1" {
		t.Errorf("expected requeue of src-1, got %q", requeued)
	}

	if rr := do(t, h, "DELETE", "/api/v1/sources/src-1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rr.Code)
	}
	if deleted != "src-1" {
		t.Errorf("expected delete of src-1, got %q", deleted)
	}
}

func TestListSources_EmptyIsArray(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	rr := do(t, h, "GET", "/api/v1/sources", "")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

func TestRetrieve(t *testing.T) {
	var got domain.RetrievalQuery
	ret := &mockRetrievalService{
		retrieveFn: func(ctx context.Context, q domain.RetrievalQuery) (*domain.RetrievalBundle, error) {
			got = q
			return &domain.RetrievalBundle{
				Query: q.Text,
				Items: []*domain.RetrievedItem{{
					Concept: &domain.KnowledgeConcept{ID: "c-1"},
					Source:  &domain.KnowledgeSource{ID: "src-1"},
					Score:   0.82,
				}},
			}, nil
		},
	}
	h := newTestServer(nil, ret, nil, nil)

	rr := do(t, h, "POST", "/api/v1/retrieve", `{"text":"safety ratings","limit":3,"filters":{"source_types":["technical"]}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.Text != "safety ratings" || got.Limit != 3 || len(got.Filters.SourceTypes) != 1 {
		t.Errorf("query not passed through: %+v", got)
	}

	var bundle domain.RetrievalBundle
	if err := json.NewDecoder(rr.Body).Decode(&bundle); err != nil {
		t.Fatalf("failed to decode bundle: %v", err)
	}
	if bundle.Len() != 1 || bundle.Items[0].Score != 0.82 {
		t.Errorf("unexpected bundle: %+v", bundle)
	}
}

func TestCreateRecommendation(t *testing.T) {
	var gotCtx *domain.SalesContext
	var gotPrefs domain.OutputPreferences
	syn := &mockSynthesisService{
		synthesizeFn: func(ctx context.Context, c *domain.SalesContext, p domain.OutputPreferences) (*domain.SalesRecommendation, error) {
			gotCtx, gotPrefs = c, p
			return &domain.SalesRecommendation{
				ID:        "rec-1",
				ContextID: "ctx-1",
				Text:      "Lead with the IIHS rating.",
				References: []domain.SourceReference{
					{RecommendationID: "rec-1", SourceID: "src-1", ConceptID: "c-1", Kind: domain.ReferenceDirectQuote},
				},
			}, nil
		},
	}
	h := newTestServer(nil, nil, syn, nil)

	body := `{
		"context": {"description": "Family of five comparing SUVs", "signals": {"product_interest": "SUV", "concerns": ["safety"]}},
		"preferences": {"format": "bullet_points", "require_citations": true}
	}`
	rr := do(t, h, "POST", "/api/v1/recommendations", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCtx.Signals.ProductInterest != "SUV" || gotCtx.Signals.Concerns[0] != "safety" {
		t.Errorf("context not passed through: %+v", gotCtx)
	}
	if gotPrefs.Format != domain.OutputBulletPoints || !gotPrefs.RequireCitations {
		t.Errorf("preferences not passed through: %+v", gotPrefs)
	}

	var rec domain.SalesRecommendation
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to decode recommendation: %v", err)
	}
	if len(rec.References) != 1 || rec.References[0].Kind != domain.ReferenceDirectQuote {
		t.Errorf("unexpected references: %+v", rec.References)
	}
}

func TestGetRecommendation(t *testing.T) {
	syn := &mockSynthesisService{
		getFn: func(ctx context.Context, id string) (*domain.SalesRecommendation, error) {
			if id == "rec-1" {
				return &domain.SalesRecommendation{ID: id}, nil
			}
			return nil, goerr.Wrap(domain.ErrNotFound, "recommendation not found", goerr.V("recommendation_id", id))
		},
	}
	h := newTestServer(nil, nil, syn, nil)

	if rr := do(t, h, "GET", "/api/v1/recommendations/rec-1", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	rr := do(t, h, "GET", "/api/v1/recommendations/rec-9", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Detail["recommendation_id"] != "rec-9" {
		t.Errorf("expected detail to carry the id, got %v", resp.Detail)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"invalid input", goerr.Wrap(domain.ErrInvalidInput, "bad", goerr.V(domain.KeyField, "description")), http.StatusBadRequest, domain.KeyField},
		{"not found", domain.ErrNotFound, http.StatusNotFound, ""},
		{"in progress", domain.ErrIngestionInProgress, http.StatusConflict, ""},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict, ""},
		{"insufficient context", goerr.Wrap(domain.ErrInsufficientContext, "sparse", goerr.V(domain.KeyContextID, "ctx-1")), http.StatusUnprocessableEntity, domain.KeyContextID},
		{"unavailable", goerr.Wrap(domain.ErrUnavailable, "gave up", goerr.V(domain.KeyAttempts, 3)), http.StatusServiceUnavailable, domain.KeyAttempts},
		{"provider rejected", &domain.ProviderError{Provider: "openai", StatusCode: 400, Message: "bad request"}, http.StatusBadGateway, ""},
		{"wrapped provider", fmt.Errorf("complete: %w", &domain.ProviderError{Provider: "openai", StatusCode: 401}), http.StatusBadGateway, ""},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syn := &mockSynthesisService{
				synthesizeFn: func(ctx context.Context, c *domain.SalesContext, p domain.OutputPreferences) (*domain.SalesRecommendation, error) {
					return nil, tt.err
				},
			}
			h := newTestServer(nil, nil, syn, nil)

			rr := do(t, h, "POST", "/api/v1/recommendations", `{"context":{"description":"x"}}`)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error == "" {
				t.Error("expected error message")
			}
			if tt.wantDetail != "" {
				if _, ok := resp.Detail[tt.wantDetail]; !ok {
					t.Errorf("expected detail key %q, got %v", tt.wantDetail, resp.Detail)
				}
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(rr.Body.String(), "boom") {
				t.Error("internal error text leaked to the client")
			}
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	big := `{"title":"x","type":"technical","text":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/api/v1/sources", bytes.NewBufferString(big))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	if rr := do(t, h, "GET", "/api/v1/unknown", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, h, "PUT", "/api/v1/sources/src-1", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}
