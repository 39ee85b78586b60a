package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

// Backfill attaches embeddings to passages that lack one. It is idempotent:
// already-embedded passages are skipped, never recomputed, so a failed run
// can simply be retried. It is not transactional across passages; a partial
// run leaves earlier passages embedded.
type Backfill struct {
	store    storage.Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewBackfill creates a backfill job.
func NewBackfill(store storage.Store, embedder embedding.Embedder, logger *zap.Logger) *Backfill {
	return &Backfill{store: store, embedder: embedder, logger: logger}
}

// Run embeds every passage lacking an embedding. Returns the number of
// passages embedded by this run and the number skipped because they were
// already embedded.
func (b *Backfill) Run(ctx context.Context) (embedded, skipped int, err error) {
	jobID := uuid.New().String()[:8]

	// Collect pending work first so embedding calls do not interleave with
	// the scan cursor.
	type pending struct {
		id   int64
		text string
	}
	var todo []pending
	err = b.store.ScanPassages(ctx, func(p *models.Passage) error {
		if p.HasEmbedding() {
			skipped++
			return nil
		}
		todo = append(todo, pending{id: p.ID, text: p.Text})
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scan passages: %w", err)
	}

	for _, item := range todo {
		vec, err := b.embedder.Embed(ctx, item.text)
		if err != nil {
			return embedded, skipped, fmt.Errorf("embed passage %d: %w", item.id, err)
		}
		if err := b.store.SetEmbedding(ctx, item.id, vec); err != nil {
			return embedded, skipped, fmt.Errorf("store embedding %d: %w", item.id, err)
		}
		embedded++
	}

	if b.logger != nil {
		b.logger.Info("backfill complete",
			zap.String("job_id", jobID),
			zap.Int("embedded", embedded),
			zap.Int("skipped", skipped),
		)
	}
	return embedded, skipped, nil
}
