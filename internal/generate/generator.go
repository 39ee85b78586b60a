package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
)

const (
	promptWithContext    = "[INST]\nQuestion: %s\nContext: %s\n[/INST]"
	promptWithoutContext = "[INST]\nQuestion: %s\n[/INST]"

	// FallbackAnswer is returned whenever the model produces no text.
	FallbackAnswer = "Sorry, I don't have an answer for that."

	// DefaultMaxContextLength bounds the retrieved passage in the prompt.
	DefaultMaxContextLength = 1000
)

// ErrGeneration wraps failures of the external model call.
var ErrGeneration = errors.New("generate: model call failed")

// Result is a fully generated answer. Context fields are nil when the
// answer was produced without a retrieved passage.
type Result struct {
	Answer    string
	PassageID *int64
	Score     *float64
}

// Generator produces grounded answers: it embeds a question, retrieves the
// most similar passage, and streams a completion from the external model.
type Generator struct {
	retriever *retrieval.Retriever
	embedder  embedding.Embedder
	completer Completer
	logger    *zap.Logger

	maxContextLength int
	decoding         DecodingConfig
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxContextLength overrides the context truncation bound.
func WithMaxContextLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxContextLength = n
		}
	}
}

// WithDecodingConfig overrides the sampling parameters.
func WithDecodingConfig(cfg DecodingConfig) Option {
	return func(g *Generator) { g.decoding = cfg }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// NewGenerator creates an answer generator.
func NewGenerator(retriever *retrieval.Retriever, embedder embedding.Embedder, completer Completer, opts ...Option) *Generator {
	g := &Generator{
		retriever:        retriever,
		embedder:         embedder,
		completer:        completer,
		maxContextLength: DefaultMaxContextLength,
		decoding:         DefaultDecodingConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer embeds the question, retrieves the best-matching passage, and
// generates a grounded answer. An empty corpus is not an error: the
// question is answered without a context section. onFragment, when
// non-nil, receives each streamed piece of text as it arrives.
func (g *Generator) Answer(ctx context.Context, question string, onFragment func(string)) (*Result, error) {
	queryVec, err := g.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := g.retriever.Search(ctx, queryVec, 1)
	if errors.Is(err, retrieval.ErrEmptyCorpus) {
		if g.logger != nil {
			g.logger.Warn("no embedded passages, answering without context")
		}
		answer, err := g.AnswerWithoutContext(ctx, question, onFragment)
		if err != nil {
			return nil, err
		}
		return &Result{Answer: answer}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	top := results[0]
	answer, err := g.AnswerWithContext(ctx, question, top.Text, onFragment)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: answer, PassageID: &top.PassageID, Score: &top.Score}, nil
}

// AnswerWithContext generates an answer grounded on the given passage text.
// The context is truncated to the configured maximum before prompting.
func (g *Generator) AnswerWithContext(ctx context.Context, question, passage string, onFragment func(string)) (string, error) {
	prompt := fmt.Sprintf(promptWithContext, question, truncateRunes(passage, g.maxContextLength))
	return g.complete(ctx, prompt, onFragment)
}

// AnswerWithoutContext generates an answer from the question alone.
func (g *Generator) AnswerWithoutContext(ctx context.Context, question string, onFragment func(string)) (string, error) {
	prompt := fmt.Sprintf(promptWithoutContext, question)
	return g.complete(ctx, prompt, onFragment)
}

func (g *Generator) complete(ctx context.Context, prompt string, onFragment func(string)) (string, error) {
	fragments, err := g.completer.Complete(ctx, prompt, g.decoding)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var sb strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			return "", fmt.Errorf("%w: %v", ErrGeneration, frag.Err)
		}
		sb.WriteString(frag.Text)
		if onFragment != nil && frag.Text != "" {
			onFragment(frag.Text)
		}
	}

	answer := sb.String()
	if answer == "" {
		if g.logger != nil {
			g.logger.Warn("model returned empty output, using fallback answer")
		}
		return FallbackAnswer, nil
	}
	return answer, nil
}

// truncateRunes hard-cuts s to at most n runes. The cut is not
// word-boundary aware.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
