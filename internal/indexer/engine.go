package indexer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
)

// SpaceLoader loads the embedding space for a model name.
type SpaceLoader interface {
	Load(ctx context.Context, model string) (*embedding.Space, error)
}

// Engine builds model indices over a fixed corpus.
type Engine struct {
	loader SpaceLoader
	lines  []string
	logger *slog.Logger
}

func NewEngine(loader SpaceLoader, lines []string) *Engine {
	return &Engine{
		loader: loader,
		lines:  lines,
		logger: slog.Default().With("component", "indexer"),
	}
}

// Build loads the model's embedding space and indexes the corpus against it.
func (e *Engine) Build(ctx context.Context, model string) (*ModelIndex, error) {
	space, err := e.loader.Load(ctx, model)
	if err != nil {
		return nil, err
	}
	idx, err := Build(model, e.lines, space)
	if err != nil {
		e.logger.Error("index build failed", "model", model, "error", err)
		return nil, err
	}
	e.logger.Info("index built",
		"model", model,
		"documents", idx.Len(),
		"dropped", idx.Dropped,
		"vocab", idx.Vocab.Len(),
		"dim", idx.Dim(),
		"duration_ms", idx.BuildDuration.Milliseconds(),
	)
	return idx, nil
}

// CorpusSize is the number of corpus lines before filtering.
func (e *Engine) CorpusSize() int {
	return len(e.lines)
}
