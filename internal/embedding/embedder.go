// Package embedding provides sentence embeddings via ONNX Runtime, with an
// LRU cache and a deterministic mock for tests.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned by providers that reject empty text. Whether an
// empty string embeds or errors is a property of the configured provider:
// the ONNX provider and the mock accept it (the tokenizer pads to the
// special tokens only).
var ErrEmptyInput = errors.New("cannot embed empty input")

// Embedder produces vector embeddings for text. Implementations must be
// deterministic: the same text and model weights yield the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
