package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/extract"
	"github.com/mrinoybanerjee/AyurBot/internal/keyword"
	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

// Pipeline ingests documents into the passage store: extract per page, clean,
// segment into sentence-like chunks, and persist each chunk as a passage with
// a sequential id and no embedding. Embeddings are attached later by the
// backfill job.
type Pipeline struct {
	store        storage.Store
	keywordIndex keyword.Index
	logger       *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithKeywordIndex makes the pipeline feed each passage to the keyword index
// in the same pass.
func WithKeywordIndex(idx keyword.Index) PipelineOption {
	return func(p *Pipeline) { p.keywordIndex = idx }
}

// WithLogger sets a logger for ingest progress.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates an ingestion pipeline writing to store.
func NewPipeline(store storage.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile extracts, cleans, segments, and stores the document at path.
// Returns the number of passages written. If the source cannot be opened or
// a page cannot be read, nothing is written and the error is returned.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	jobID := uuid.New().String()[:8]

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat document: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}

	src, err := extract.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("open document: %w", err)
	}
	defer src.Close()

	// Pages are cleaned individually, then concatenated in document order
	// with no separator.
	var cleaned strings.Builder
	for page := 0; page < src.PageCount(); page++ {
		text, err := src.PageText(page)
		if err != nil {
			return 0, fmt.Errorf("read page %d: %w", page, err)
		}
		cleaned.WriteString(Clean(text))
	}

	chunks := Segment(cleaned.String())

	startID, err := p.store.NextPassageID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next passage id: %w", err)
	}
	passages := make([]*models.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = &models.Passage{ID: startID + int64(i), Text: chunk}
	}
	if err := p.store.BatchInsertPassages(ctx, passages); err != nil {
		return 0, fmt.Errorf("store passages: %w", err)
	}

	if p.keywordIndex != nil {
		for _, passage := range passages {
			if err := p.keywordIndex.Index(ctx, passage.ID, passage.Text); err != nil {
				return 0, fmt.Errorf("keyword index passage %d: %w", passage.ID, err)
			}
		}
	}

	rec := &models.SourceRecord{
		Path:     absPath,
		MTimeNS:  info.ModTime().UnixNano(),
		Size:     info.Size(),
		Passages: int64(len(passages)),
	}
	if err := p.store.UpsertSource(ctx, rec); err != nil {
		return 0, fmt.Errorf("record source: %w", err)
	}

	if p.logger != nil {
		p.logger.Info("ingest complete",
			zap.String("job_id", jobID),
			zap.String("path", absPath),
			zap.Int("passages", len(passages)),
		)
	}
	return len(passages), nil
}

// ShouldSkip reports whether path was already ingested with the same mtime
// and size. Used by watch mode to avoid duplicating passages for unchanged
// files.
func (p *Pipeline) ShouldSkip(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, err
	}
	rec, err := p.store.GetSource(ctx, absPath)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return rec.MTimeNS == info.ModTime().UnixNano() && rec.Size == info.Size(), nil
}
