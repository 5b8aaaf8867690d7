// Package vectorizer mean-pools the embeddings of a text's in-vocabulary
// tokens into one vector.
package vectorizer

import (
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer/vocab"
	"gonum.org/v1/gonum/blas/blas32"
)

// Vectorize tokenizes text and returns the mean of the embedding rows of its
// in-vocabulary tokens. ok is false when no token is in the vocabulary; that
// is distinct from a valid all-zero mean.
func Vectorize(text string, table *embedding.Table, v *vocab.Index) (vec []float32, ok bool) {
	return VectorizeTokens(tokenizer.Tokenize(text), table, v)
}

// VectorizeTokens is Vectorize over already tokenized input.
func VectorizeTokens(tokens []string, table *embedding.Table, v *vocab.Index) (vec []float32, ok bool) {
	sum := blas32.Vector{N: table.Dim, Inc: 1, Data: make([]float32, table.Dim)}
	n := 0
	for _, tok := range tokens {
		row, found := v.Lookup(tok)
		if !found {
			continue
		}
		blas32.Axpy(1, table.RowVector(row), sum)
		n++
	}
	if n == 0 {
		return nil, false
	}
	// Exact division; scaling by 1/n rounds differently.
	d := float32(n)
	for i := range sum.Data {
		sum.Data[i] /= d
	}
	return sum.Data, true
}
