package retrieval

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func insertEmbedded(t *testing.T, store storage.Store, id int64, text string, vec []float32) {
	t.Helper()
	ctx := context.Background()
	if err := store.InsertPassage(ctx, &models.Passage{ID: id, Text: text}); err != nil {
		t.Fatalf("InsertPassage: %v", err)
	}
	if err := store.SetEmbedding(ctx, id, vec); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetriever_RanksByDescendingScore(t *testing.T) {
	store := newTestStore(t)
	insertEmbedded(t, store, 0, "far", []float32{0, 1, 0})
	insertEmbedded(t, store, 1, "close", []float32{1, 0.1, 0})
	insertEmbedded(t, store, 2, "exact", []float32{1, 0, 0})

	r := NewRetriever(store, nil)
	results, err := r.Search(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].PassageID != 2 || results[1].PassageID != 1 || results[2].PassageID != 0 {
		t.Errorf("order = [%d %d %d], want [2 1 0]",
			results[0].PassageID, results[1].PassageID, results[2].PassageID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("exact match score = %v, want 1.0", results[0].Score)
	}
	if results[0].Text != "exact" {
		t.Errorf("Text = %q, want %q", results[0].Text, "exact")
	}
}

func TestRetriever_TopKClipsResults(t *testing.T) {
	store := newTestStore(t)
	for id := int64(0); id < 5; id++ {
		insertEmbedded(t, store, id, "p", []float32{1, float32(id)})
	}

	r := NewRetriever(store, nil)
	results, err := r.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}

	// Fewer embedded passages than topK returns all of them.
	results, err = r.Search(context.Background(), []float32{1, 0}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

func TestRetriever_TiesKeepScanOrder(t *testing.T) {
	store := newTestStore(t)
	// Same vector, so identical scores; stable sort preserves id order.
	for id := int64(0); id < 3; id++ {
		insertEmbedded(t, store, id, "same", []float32{1, 1})
	}

	r := NewRetriever(store, nil)
	results, err := r.Search(context.Background(), []float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, res := range results {
		if res.PassageID != int64(i) {
			t.Errorf("results[%d].PassageID = %d, want %d", i, res.PassageID, i)
		}
	}
}

func TestRetriever_EmptyCorpus(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(store, nil)

	_, err := r.Search(context.Background(), []float32{1, 0}, 5)
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}

	// Passages without embeddings do not count as corpus.
	if err := store.InsertPassage(context.Background(), &models.Passage{ID: 0, Text: "bare"}); err != nil {
		t.Fatalf("InsertPassage: %v", err)
	}
	_, err = r.Search(context.Background(), []float32{1, 0}, 5)
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestRetriever_SkipsUnembeddedPassages(t *testing.T) {
	store := newTestStore(t)
	insertEmbedded(t, store, 0, "embedded", []float32{1, 0})
	if err := store.InsertPassage(context.Background(), &models.Passage{ID: 1, Text: "pending"}); err != nil {
		t.Fatalf("InsertPassage: %v", err)
	}

	r := NewRetriever(store, nil)
	results, err := r.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].PassageID != 0 {
		t.Errorf("results = %+v, want only passage 0", results)
	}
}

func TestRetriever_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	insertEmbedded(t, store, 0, "p", []float32{1, 0, 0})

	r := NewRetriever(store, nil)
	if _, err := r.Search(context.Background(), []float32{1, 0}, 5); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestRetriever_RejectsNonPositiveTopK(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(store, nil)
	if _, err := r.Search(context.Background(), []float32{1}, 0); err == nil {
		t.Error("expected error for topK=0")
	}
}

func TestRetriever_LogsScoredCandidateCount(t *testing.T) {
	store := newTestStore(t)
	insertEmbedded(t, store, 0, "a", []float32{1, 0, 0})
	insertEmbedded(t, store, 1, "b", []float32{0, 1, 0})
	insertEmbedded(t, store, 2, "c", []float32{0, 0, 1})

	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRetriever(store, zap.New(core))
	results, err := r.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	entries := logs.FilterMessage("retrieval complete").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["candidates"]; got != int64(3) {
		t.Errorf("candidates field = %v, want 3", got)
	}
	if got := fields["returned"]; got != int64(2) {
		t.Errorf("returned field = %v, want 2", got)
	}
}
