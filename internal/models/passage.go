// Package models defines core data structures for passages, questions, and answers.
package models

import "time"

// Passage is a single retrievable segment of corpus text.
// IDs are sequential integers assigned at ingestion time, starting at 0,
// and are never reused within a store's lifetime.
type Passage struct {
	ID        int64     `json:"id" db:"id"`
	Text      string    `json:"text" db:"text"`
	Embedding []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasEmbedding reports whether the passage has been embedded.
func (p *Passage) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// RetrievalResult is a single semantic search hit.
type RetrievalResult struct {
	PassageID int64   `json:"passage_id"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
}

// SourceRecord tracks an ingested source file so unchanged files can be
// skipped on re-ingestion (watch mode).
type SourceRecord struct {
	Path       string    `json:"path" db:"path"`
	MTimeNS    int64     `json:"mtime_ns" db:"mtime_ns"`
	Size       int64     `json:"size" db:"size"`
	Passages   int64     `json:"passages" db:"passages"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}
