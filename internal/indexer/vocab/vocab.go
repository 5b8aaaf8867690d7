// Package vocab maps lowercase tokens to their row in an embedding table.
package vocab

import "strings"

// Index is an immutable token to row mapping. It is safe for concurrent
// reads.
type Index struct {
	rows map[string]int
}

// Build indexes words by lowercased form. When two entries collide after
// lowercasing, the later position wins.
func Build(words []string) *Index {
	rows := make(map[string]int, len(words))
	for i, w := range words {
		rows[strings.ToLower(w)] = i
	}
	return &Index{rows: rows}
}

// Lookup returns the row for token. Absent tokens report ok=false.
func (v *Index) Lookup(token string) (row int, ok bool) {
	row, ok = v.rows[token]
	return row, ok
}

// Len is the number of distinct lowercase tokens.
func (v *Index) Len() int {
	return len(v.rows)
}
