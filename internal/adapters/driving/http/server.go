package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	ingestion driving.IngestionService
	retrieval driving.RetrievalService
	synthesis driving.SynthesisService

	// dependencies checked by /ready, by name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server. checks may be nil.
func NewServer(
	cfg Config,
	ingestion driving.IngestionService,
	retrieval driving.RetrievalService,
	synthesis driving.SynthesisService,
	checks map[string]Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		logger:    logger,
		ingestion: ingestion,
		retrieval: retrieval,
		synthesis: synthesis,
		checks:    checks,
	}
	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // synthesis waits on completion retries
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /api/v1/openapi.json", s.handleOpenAPI)

	// Knowledge sources
	s.router.HandleFunc("POST /api/v1/sources", s.handleSubmitSource)
	s.router.HandleFunc("GET /api/v1/sources", s.handleListSources)
	s.router.HandleFunc("GET /api/v1/sources/{id}", s.handleGetSource)
	s.router.HandleFunc("DELETE /api/v1/sources/{id}", s.handleDeleteSource)
	s.router.HandleFunc("POST /api/v1/sources/{id}/ingest", s.handleRequeueSource)
	s.router.HandleFunc("GET /api/v1/sources/{id}/concepts", s.handleListConcepts)

	// Retrieval and synthesis
	s.router.HandleFunc("POST /api/v1/retrieve", s.handleRetrieve)
	s.router.HandleFunc("POST /api/v1/recommendations", s.handleCreateRecommendation)
	s.router.HandleFunc("GET /api/v1/recommendations/{id}", s.handleGetRecommendation)
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
