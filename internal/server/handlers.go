package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question))

	start := time.Now()
	result, err := s.generator.Answer(r.Context(), req.Question, nil)
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.AskResponse{
		Question:  req.Question,
		Answer:    result.Answer,
		PassageID: result.PassageID,
		Score:     result.Score,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req models.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("evaluate request", zap.String("question", req.Question))

	ctx := r.Context()
	ragResult, err := s.generator.Answer(ctx, req.Question, nil)
	if err != nil {
		s.logger.Error("grounded answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	nonRAG, err := s.generator.AnswerWithoutContext(ctx, req.Question, nil)
	if err != nil {
		s.logger.Error("ungrounded answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cmp, err := s.evaluator.Score(ctx, req.TrueAnswer, ragResult.Answer, nonRAG)
	if err != nil {
		s.logger.Error("evaluation scoring failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.EvaluateResponse{
		Question:     req.Question,
		RAGAnswer:    ragResult.Answer,
		NonRAGAnswer: nonRAG,
		RAGScore:     cmp.RAGScore,
		NonRAGScore:  cmp.NonRAGScore,
	})
}

func (s *Server) handleGetPassage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid passage id")
		return
	}
	p, err := s.storage.GetPassage(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "passage not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":         p.ID,
		"text":       p.Text,
		"embedded":   p.HasEmbedding(),
		"created_at": p.CreatedAt,
	})
}

func (s *Server) handlePassageSearch(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	hits, err := s.keyword.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": hits,
	})
}

// handleSemanticSearch embeds the query and ranks passages by cosine
// similarity. Unlike the answer path, which always takes the single best
// passage as context, inspection may ask for any k; the default comes from
// retrieval.top_k in the config.
func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK := s.config.Retrieval.TopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid k")
			return
		}
		topK = n
	}
	vec, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits, err := s.retriever.Search(r.Context(), vec, topK)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyCorpus) {
			s.respondJSON(w, http.StatusOK, map[string]interface{}{
				"query":   query,
				"results": []*models.RetrievalResult{},
			})
			return
		}
		s.logger.Error("semantic search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": hits,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	passages, err := s.storage.CountPassages(ctx)
	if err != nil {
		s.logger.Error("status: count passages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	embedded, err := s.storage.CountEmbedded(ctx)
	if err != nil {
		s.logger.Error("status: count embedded failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dims, err := s.storage.EmbeddingDimensions(ctx)
	if err != nil {
		s.logger.Error("status: embedding dimensions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"passages": passages,
		"embedded": embedded,
		"pending":  passages - embedded,
	}
	configInfo := map[string]interface{}{
		"embedding_dimensions": dims,
		"generation_model":     s.config.Generation.Model,
		"max_context_length":   s.config.Generation.MaxContextLength,
		"database_path":        s.config.Storage.DatabasePath,
		"keyword_index_path":   s.config.Storage.KeywordIndexPath,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.KeywordIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
