// Package server provides the HTTP API for AyurBot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/config"
	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/evaluate"
	"github.com/mrinoybanerjee/AyurBot/internal/generate"
	"github.com/mrinoybanerjee/AyurBot/internal/keyword"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

// Server is the HTTP server for the AyurBot API.
type Server struct {
	generator *generate.Generator
	evaluator *evaluate.Evaluator
	embedder  embedding.Embedder
	retriever *retrieval.Retriever
	storage   storage.Store
	keyword   keyword.Index
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. The keyword index
// may be nil; its endpoints then report as unavailable.
func NewServer(
	generator *generate.Generator,
	evaluator *evaluate.Evaluator,
	embedder embedding.Embedder,
	retriever *retrieval.Retriever,
	store storage.Store,
	kwIdx keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		generator: generator,
		evaluator: evaluator,
		embedder:  embedder,
		retriever: retriever,
		storage:   store,
		keyword:   kwIdx,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Get("/api/v1/passages/search", s.handlePassageSearch)
	r.Get("/api/v1/passages/semantic", s.handleSemanticSearch)
	r.Get("/api/v1/passages/{id}", s.handleGetPassage)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}
