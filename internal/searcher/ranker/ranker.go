// Package ranker scores documents against a query vector and selects the
// highest-scoring ones.
package ranker

import (
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ScoredDoc is one search hit.
type ScoredDoc struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Score returns the dot product of query with every row of docs.
func Score(docs blas32.General, query []float32) []float32 {
	scores := blas32.Vector{N: docs.Rows, Inc: 1, Data: make([]float32, docs.Rows)}
	if docs.Rows == 0 {
		return scores.Data
	}
	x := blas32.Vector{N: len(query), Inc: 1, Data: query}
	blas32.Gemv(blas.NoTrans, 1, docs, x, 0, scores)
	return scores.Data
}

// Rank scores every document in idx against query and returns the top k in
// descending score order. Equal scores keep corpus order.
func Rank(idx *indexer.ModelIndex, query []float32, k int) []ScoredDoc {
	scores := Score(idx.Docs, query)
	top := TopK(scores, k)
	out := make([]ScoredDoc, len(top))
	for i, doc := range top {
		out[i] = ScoredDoc{Text: idx.Lines[doc], Score: float64(scores[doc])}
	}
	return out
}
