package evaluate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
)

// Comparison scores two candidate answers against a reference answer by
// embedding similarity. Higher is closer to the reference.
type Comparison struct {
	RAGScore    float64 `json:"rag_score"`
	NonRAGScore float64 `json:"non_rag_score"`
}

// Evaluator measures how close generated answers are to a trusted
// reference, using the same embedding space as retrieval.
type Evaluator struct {
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewEvaluator creates an evaluator over the given embedder.
func NewEvaluator(embedder embedding.Embedder, logger *zap.Logger) *Evaluator {
	return &Evaluator{embedder: embedder, logger: logger}
}

// Score embeds the reference answer and both candidates, and returns the
// cosine similarity of each candidate to the reference.
func (e *Evaluator) Score(ctx context.Context, reference, ragAnswer, nonRAGAnswer string) (*Comparison, error) {
	refVec, err := e.embedder.Embed(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("embed reference: %w", err)
	}
	ragVec, err := e.embedder.Embed(ctx, ragAnswer)
	if err != nil {
		return nil, fmt.Errorf("embed rag answer: %w", err)
	}
	nonRAGVec, err := e.embedder.Embed(ctx, nonRAGAnswer)
	if err != nil {
		return nil, fmt.Errorf("embed non-rag answer: %w", err)
	}

	cmp := &Comparison{
		RAGScore:    retrieval.CosineSimilarity(refVec, ragVec),
		NonRAGScore: retrieval.CosineSimilarity(refVec, nonRAGVec),
	}
	if e.logger != nil {
		e.logger.Debug("evaluation scored",
			zap.Float64("rag_score", cmp.RAGScore),
			zap.Float64("non_rag_score", cmp.NonRAGScore),
		)
	}
	return cmp, nil
}
