// Package storage defines the persistence interface for the passage store.
package storage

import (
	"context"

	"github.com/mrinoybanerjee/AyurBot/internal/models"
)

// Store defines passage persistence operations. The store is append-mostly:
// ingestion adds passages, the backfill job attaches embeddings, and passage
// text is never mutated after insert. Access is single-writer; ingestion and
// backfill run strictly before query traffic against a given store.
type Store interface {
	// Passage operations
	InsertPassage(ctx context.Context, p *models.Passage) error
	BatchInsertPassages(ctx context.Context, passages []*models.Passage) error
	GetPassage(ctx context.Context, id int64) (*models.Passage, error)
	// ScanPassages invokes fn for every passage in ascending id order.
	// Scanning stops at the first error returned by fn.
	ScanPassages(ctx context.Context, fn func(*models.Passage) error) error
	// SetEmbedding attaches an embedding to a passage. The vector dimension
	// must match any embedding already present in the store.
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
	// NextPassageID returns the id the next inserted passage should use
	// (max existing id + 1, or 0 for an empty store).
	NextPassageID(ctx context.Context) (int64, error)

	// Source bookkeeping for incremental ingestion
	GetSource(ctx context.Context, path string) (*models.SourceRecord, error)
	UpsertSource(ctx context.Context, rec *models.SourceRecord) error

	// Stats
	CountPassages(ctx context.Context) (int64, error)
	CountEmbedded(ctx context.Context) (int64, error)
	// EmbeddingDimensions returns the dimension of stored embeddings,
	// or 0 when no passage has been embedded yet.
	EmbeddingDimensions(ctx context.Context) (int, error)

	Close() error
}
