package generate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/models"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
)

// fakeCompleter records the last prompt and replays canned fragments.
type fakeCompleter struct {
	lastPrompt string
	fragments  []Fragment
	err        error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, cfg DecodingConfig) (<-chan Fragment, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan Fragment, len(f.fragments))
	for _, frag := range f.fragments {
		ch <- frag
	}
	close(ch)
	return ch, nil
}

func newTestRetriever(t *testing.T) (*retrieval.Retriever, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return retrieval.NewRetriever(store, nil), store
}

func seedPassage(t *testing.T, store storage.Store, emb embedding.Embedder, id int64, text string) {
	t.Helper()
	ctx := context.Background()
	if err := store.InsertPassage(ctx, &models.Passage{ID: id, Text: text}); err != nil {
		t.Fatalf("InsertPassage: %v", err)
	}
	vec, err := emb.Embed(ctx, text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if err := store.SetEmbedding(ctx, id, vec); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
}

func TestGenerator_AnswerUsesRetrievedContext(t *testing.T) {
	retriever, store := newTestRetriever(t)
	emb := embedding.NewMockEmbedder(16)
	seedPassage(t, store, emb, 0, "Ashwagandha is an adaptogenic herb.")

	completer := &fakeCompleter{fragments: []Fragment{{Text: "It is "}, {Text: "an herb."}}}
	gen := NewGenerator(retriever, emb, completer)

	result, err := gen.Answer(context.Background(), "What is ashwagandha?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != "It is an herb." {
		t.Errorf("Answer = %q, want concatenated fragments", result.Answer)
	}
	if result.PassageID == nil || *result.PassageID != 0 {
		t.Errorf("PassageID = %v, want 0", result.PassageID)
	}
	if result.Score == nil {
		t.Error("Score = nil, want retrieval score")
	}

	want := "[INST]\nQuestion: What is ashwagandha?\nContext: Ashwagandha is an adaptogenic herb.\n[/INST]"
	if completer.lastPrompt != want {
		t.Errorf("prompt = %q, want %q", completer.lastPrompt, want)
	}
}

func TestGenerator_EmptyCorpusAnswersWithoutContext(t *testing.T) {
	retriever, _ := newTestRetriever(t)
	completer := &fakeCompleter{fragments: []Fragment{{Text: "General answer."}}}
	gen := NewGenerator(retriever, embedding.NewMockEmbedder(16), completer)

	result, err := gen.Answer(context.Background(), "What is vata?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != "General answer." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.PassageID != nil || result.Score != nil {
		t.Error("context fields should be nil without a retrieved passage")
	}
	if completer.lastPrompt != "[INST]\nQuestion: What is vata?\n[/INST]" {
		t.Errorf("prompt = %q, want no-context template", completer.lastPrompt)
	}
}

func TestGenerator_TruncatesContext(t *testing.T) {
	completer := &fakeCompleter{fragments: []Fragment{{Text: "ok"}}}
	gen := NewGenerator(nil, nil, completer)

	passage := strings.Repeat("x", 1500)
	if _, err := gen.AnswerWithContext(context.Background(), "q", passage, nil); err != nil {
		t.Fatalf("AnswerWithContext: %v", err)
	}

	wantContext := strings.Repeat("x", 1000)
	if !strings.Contains(completer.lastPrompt, "Context: "+wantContext+"\n") {
		t.Error("context not truncated to 1000 characters")
	}
	if strings.Contains(completer.lastPrompt, strings.Repeat("x", 1001)) {
		t.Error("context exceeds 1000 characters")
	}
}

func TestGenerator_ShortContextNotTruncated(t *testing.T) {
	completer := &fakeCompleter{fragments: []Fragment{{Text: "ok"}}}
	gen := NewGenerator(nil, nil, completer)

	if _, err := gen.AnswerWithContext(context.Background(), "q", "short passage", nil); err != nil {
		t.Fatalf("AnswerWithContext: %v", err)
	}
	if !strings.Contains(completer.lastPrompt, "Context: short passage\n") {
		t.Errorf("prompt = %q", completer.lastPrompt)
	}
}

func TestGenerator_EmptyStreamReturnsFallback(t *testing.T) {
	completer := &fakeCompleter{}
	gen := NewGenerator(nil, nil, completer)

	answer, err := gen.AnswerWithoutContext(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("AnswerWithoutContext: %v", err)
	}
	if answer != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer)
	}

	// Fragments that only carry empty text also fall back.
	completer.fragments = []Fragment{{Text: ""}, {Text: ""}}
	answer, err = gen.AnswerWithoutContext(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("AnswerWithoutContext: %v", err)
	}
	if answer != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer)
	}
}

func TestGenerator_ModelErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	gen := NewGenerator(nil, nil, completer)

	if _, err := gen.AnswerWithoutContext(context.Background(), "q", nil); !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}

	// Mid-stream failures propagate too, even after some output.
	completer = &fakeCompleter{fragments: []Fragment{{Text: "partial"}, {Err: errors.New("reset")}}}
	gen = NewGenerator(nil, nil, completer)
	if _, err := gen.AnswerWithoutContext(context.Background(), "q", nil); !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
}

func TestGenerator_StreamsFragmentsToCallback(t *testing.T) {
	completer := &fakeCompleter{fragments: []Fragment{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	gen := NewGenerator(nil, nil, completer)

	var streamed []string
	answer, err := gen.AnswerWithoutContext(context.Background(), "q", func(s string) {
		streamed = append(streamed, s)
	})
	if err != nil {
		t.Fatalf("AnswerWithoutContext: %v", err)
	}
	if answer != "abc" {
		t.Errorf("answer = %q, want %q", answer, "abc")
	}
	if len(streamed) != 3 || streamed[0] != "a" || streamed[2] != "c" {
		t.Errorf("streamed = %v", streamed)
	}
}

func TestTruncateRunes_MultibyteSafe(t *testing.T) {
	s := strings.Repeat("ā", 10)
	got := truncateRunes(s, 4)
	if got != strings.Repeat("ā", 4) {
		t.Errorf("truncateRunes = %q", got)
	}
}
