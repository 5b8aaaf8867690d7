// Package embedding loads word-vector spaces from their sources (local .npz
// array files or a remote pretrained-vector provider) into one shape: a
// dense float32 table plus the vocabulary naming its rows.
package embedding

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"gonum.org/v1/gonum/blas/blas32"
)

// Table is a row-major (rows x dim) float32 matrix. Row i is the embedding
// of vocabulary entry i. A Table is never mutated after construction.
type Table struct {
	Rows int
	Dim  int
	Data []float32
}

// NewTable wraps data as a rows x dim table.
func NewTable(rows, dim int, data []float32) (*Table, error) {
	if rows < 0 || dim < 0 || len(data) != rows*dim {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile,
			"embedding table %dx%d does not match %d values", rows, dim, len(data))
	}
	return &Table{Rows: rows, Dim: dim, Data: data}, nil
}

// Row returns row i as a slice aliasing the table's storage.
func (t *Table) Row(i int) []float32 {
	return t.Data[i*t.Dim : (i+1)*t.Dim]
}

// RowVector returns row i as a blas32 vector.
func (t *Table) RowVector(i int) blas32.Vector {
	return blas32.Vector{N: t.Dim, Inc: 1, Data: t.Row(i)}
}

// Space is an embedding table with the vocabulary naming its rows.
type Space struct {
	Table      *Table
	Vocabulary []string
}

// NewSpace checks that vocabulary and table rows line up.
func NewSpace(table *Table, vocabulary []string) (*Space, error) {
	if table.Rows != len(vocabulary) {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile,
			"embedding table has %d rows but vocabulary has %d entries", table.Rows, len(vocabulary))
	}
	return &Space{Table: table, Vocabulary: vocabulary}, nil
}

func (s *Space) String() string {
	return fmt.Sprintf("space(vocab=%d, dim=%d)", len(s.Vocabulary), s.Table.Dim)
}
