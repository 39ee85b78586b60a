package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()

	a, err := e.Embed(ctx, "ayurveda uses herbs")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "ayurveda uses herbs")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(32)
	emb, err := e.Embed(context.Background(), "some passage text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("norm=%v, want 1", math.Sqrt(sum))
	}
}

func TestMockEmbedder_DistinctTexts(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "first")
	b, _ := e.Embed(ctx, "second")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should produce different embeddings")
	}
}

func TestMockEmbedder_BatchOrder(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()

	texts := []string{"a", "b", "c"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch length=%d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] does not match Embed(%q)", i, text)
			}
		}
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("Dimensions=%d, want 384", e.Dimensions())
	}
}
