package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
)

// maxBodyBytes bounds request bodies; source text is the largest payload
const maxBodyBytes = 16 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error  string         `json:"error" example:"invalid input"`
	Detail map[string]any `json:"detail,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency checked by /ready
// @Description Readiness status with per-dependency results
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// RecommendationRequest asks for a recommendation for a sales context
// @Description Sales context plus output preferences
type RecommendationRequest struct {
	Context     domain.SalesContext      `json:"context"`
	Preferences domain.OutputPreferences `json:"preferences"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the storage, queue and lock backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleOpenAPI serves the registered swagger document, if any
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Source endpoints

// handleSubmitSource godoc
// @Summary      Submit a knowledge source
// @Description  Stores the document text and queues it for ingestion. Poll the source for its status.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        request  body      driving.SubmitSourceRequest  true  "Source metadata and plain text"
// @Success      202      {object}  domain.KnowledgeSource
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      409      {object}  ErrorResponse  "Source is being ingested"
// @Router       /sources [post]
func (s *Server) handleSubmitSource(w http.ResponseWriter, r *http.Request) {
	var req driving.SubmitSourceRequest
	if !s.decode(w, r, &req) {
		return
	}

	source, err := s.ingestion.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, source)
}

// handleListSources godoc
// @Summary      List knowledge sources
// @Tags         Sources
// @Produce      json
// @Success      200  {array}   domain.KnowledgeSource
// @Router       /sources [get]
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ingestion.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if sources == nil {
		sources = []*domain.KnowledgeSource{}
	}
	writeJSON(w, http.StatusOK, sources)
}

// handleGetSource godoc
// @Summary      Get a knowledge source
// @Description  Returns the source with its processing status and concept count
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  domain.KnowledgeSource
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Router       /sources/{id} [get]
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := s.ingestion.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// handleDeleteSource godoc
// @Summary      Delete a knowledge source
// @Description  Removes the source, its concepts and their index entries
// @Tags         Sources
// @Param        id   path  string  true  "Source ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Failure      409  {object}  ErrorResponse  "Source is being ingested"
// @Router       /sources/{id} [delete]
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestion.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRequeueSource godoc
// @Summary      Re-ingest a knowledge source
// @Description  Queues another ingestion of the stored document. The current concepts stay searchable until it succeeds.
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      202  {object}  domain.KnowledgeSource
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Failure      409  {object}  ErrorResponse  "Source is being ingested"
// @Router       /sources/{id}/ingest [post]
func (s *Server) handleRequeueSource(w http.ResponseWriter, r *http.Request) {
	source, err := s.ingestion.Requeue(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, source)
}

// handleListConcepts godoc
// @Summary      List the concepts of a source
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      200  {array}   domain.KnowledgeConcept
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Router       /sources/{id}/concepts [get]
func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := s.ingestion.Concepts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if concepts == nil {
		concepts = []*domain.KnowledgeConcept{}
	}
	writeJSON(w, http.StatusOK, concepts)
}

// Retrieval and synthesis

// handleRetrieve godoc
// @Summary      Retrieve concepts
// @Description  Ranks concepts by similarity to a text or vector query
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RetrievalQuery  true  "Query, filters and limit"
// @Success      200      {object}  domain.RetrievalBundle
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      503      {object}  ErrorResponse  "Embedding provider unavailable"
// @Router       /retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var query domain.RetrievalQuery
	if !s.decode(w, r, &query) {
		return
	}

	bundle, err := s.retrieval.Retrieve(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// handleCreateRecommendation godoc
// @Summary      Generate a recommendation
// @Description  Retrieves knowledge for the sales context, generates a recommendation and stores it with its source references
// @Tags         Recommendations
// @Accept       json
// @Produce      json
// @Param        request  body      RecommendationRequest  true  "Sales context and output preferences"
// @Success      201      {object}  domain.SalesRecommendation
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      422      {object}  ErrorResponse  "Insufficient context"
// @Failure      502      {object}  ErrorResponse  "Completion provider rejected the request"
// @Failure      503      {object}  ErrorResponse  "Completion provider unavailable"
// @Router       /recommendations [post]
func (s *Server) handleCreateRecommendation(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.synthesis.Synthesize(r.Context(), &req.Context, req.Preferences)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleGetRecommendation godoc
// @Summary      Get a recommendation
// @Tags         Recommendations
// @Produce      json
// @Param        id   path      string  true  "Recommendation ID"
// @Success      200  {object}  domain.SalesRecommendation
// @Failure      404  {object}  ErrorResponse  "Recommendation not found"
// @Router       /recommendations/{id} [get]
func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.synthesis.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Helper functions

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) (int, string) {
	var perr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrIngestionInProgress):
		return http.StatusConflict, "ingestion in progress"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, domain.ErrInsufficientContext):
		return http.StatusUnprocessableEntity, "insufficient context"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "provider unavailable"
	case errors.As(err, &perr):
		return http.StatusBadGateway, "provider error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	resp := ErrorResponse{Error: message}
	if status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		if detail := domain.ErrorDetail(err); len(detail) > 0 {
			resp.Detail = detail
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
