package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

// ErrEmptyCorpus is returned when no embedded passages exist to search.
var ErrEmptyCorpus = errors.New("retrieval: no embedded passages in store")

// Retriever ranks stored passages against a query embedding by cosine
// similarity. Every embedded passage is scored on each call; there is no
// approximate index.
type Retriever struct {
	store  storage.Store
	logger *zap.Logger
}

// NewRetriever creates a retriever over the given store.
func NewRetriever(store storage.Store, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, logger: logger}
}

// Search returns the topK most similar passages to the query vector, in
// descending score order. Passages without an embedding are skipped; a
// passage embedded with a different dimensionality than the query is an
// error. Returns ErrEmptyCorpus when no passage has an embedding.
func (r *Retriever) Search(ctx context.Context, query []float32, topK int) ([]*models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("retrieval: topK must be positive, got %d", topK)
	}

	var results []*models.RetrievalResult
	var dimErr error
	err := r.store.ScanPassages(ctx, func(p *models.Passage) error {
		if !p.HasEmbedding() {
			return nil
		}
		if len(p.Embedding) != len(query) {
			dimErr = fmt.Errorf("retrieval: passage %d has %d dimensions, query has %d",
				p.ID, len(p.Embedding), len(query))
			return dimErr
		}
		results = append(results, &models.RetrievalResult{
			PassageID: p.ID,
			Score:     CosineSimilarity(query, p.Embedding),
			Text:      p.Text,
		})
		return nil
	})
	if dimErr != nil {
		return nil, dimErr
	}
	if err != nil {
		return nil, fmt.Errorf("scan passages: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrEmptyCorpus
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	scored := len(results)
	if len(results) > topK {
		results = results[:topK]
	}

	if r.logger != nil {
		r.logger.Debug("retrieval complete",
			zap.Int("candidates", scored),
			zap.Int("returned", len(results)),
			zap.Float64("top_score", results[0].Score),
		)
	}
	return results, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude. The vectors must be the
// same length.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
