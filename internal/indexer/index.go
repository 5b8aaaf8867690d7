// Package indexer turns the raw corpus into a per-model dense index: one
// mean-pooled vector per corpus line that has at least one in-vocabulary
// token, stacked into a row-major document matrix.
package indexer

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer/vocab"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"gonum.org/v1/gonum/blas/blas32"
)

// ModelIndex is everything a search against one model needs. Docs row i is
// the vector of Lines[i]. A ModelIndex is immutable once built and safe for
// concurrent reads.
type ModelIndex struct {
	Model   string
	Table   *embedding.Table
	Vocab   *vocab.Index
	Lines   []string
	Docs    blas32.General
	Dropped int

	BuiltAt       time.Time
	BuildDuration time.Duration
}

// Build vectorizes every line against space, keeping lines that produce a
// vector in their original order. It fails with ErrEmptyCorpusIndex when no
// line survives.
func Build(model string, lines []string, space *embedding.Space) (*ModelIndex, error) {
	start := time.Now()
	table := space.Table
	if table.Dim == 0 && table.Rows > 0 {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "model %q has zero-dimensional embeddings", model)
	}
	v := vocab.Build(space.Vocabulary)

	kept := make([]string, 0, len(lines))
	data := make([]float32, 0, len(lines)*table.Dim)
	for _, line := range lines {
		vec, ok := vectorizer.Vectorize(line, table, v)
		if !ok {
			continue
		}
		kept = append(kept, line)
		data = append(data, vec...)
	}
	if len(kept) == 0 {
		return nil, apperrors.Of(apperrors.ErrEmptyCorpusIndex,
			"model %q shares no vocabulary with the corpus (%d lines)", model, len(lines))
	}

	return &ModelIndex{
		Model: model,
		Table: table,
		Vocab: v,
		Lines: kept,
		Docs: blas32.General{
			Rows:   len(kept),
			Cols:   table.Dim,
			Stride: table.Dim,
			Data:   data,
		},
		Dropped:       len(lines) - len(kept),
		BuiltAt:       time.Now(),
		BuildDuration: time.Since(start),
	}, nil
}

// Len is the number of indexed documents.
func (m *ModelIndex) Len() int {
	return len(m.Lines)
}

// Dim is the embedding dimension.
func (m *ModelIndex) Dim() int {
	return m.Table.Dim
}

// Document returns the vector of document i.
func (m *ModelIndex) Document(i int) []float32 {
	return m.Docs.Data[i*m.Docs.Stride : i*m.Docs.Stride+m.Docs.Cols]
}

// Vectorize embeds text in this model's space.
func (m *ModelIndex) Vectorize(text string) ([]float32, bool) {
	return vectorizer.Vectorize(text, m.Table, m.Vocab)
}

// VectorizeTokens embeds pre-tokenized text in this model's space.
func (m *ModelIndex) VectorizeTokens(tokens []string) ([]float32, bool) {
	return vectorizer.VectorizeTokens(tokens, m.Table, m.Vocab)
}
