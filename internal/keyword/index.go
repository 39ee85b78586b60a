// Package keyword provides an exact-term passage index for corpus inspection.
// It sits entirely outside the semantic answer path: retrieval-augmented
// generation never consults it.
package keyword

import "context"

// Index defines keyword lookup over stored passages.
type Index interface {
	Index(ctx context.Context, passageID int64, text string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	PassageID int64   `json:"passage_id"`
	Score     float64 `json:"score"`
}
