// Package embeddingtest writes small model containers for tests.
package embeddingtest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// NPY encodes a version 1.0 .npy array with the given header fields.
func NPY(descr string, fortran bool, shape []int, payload []byte) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	shapeStr += ")"
	order := "False"
	if fortran {
		order = "True"
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", descr, order, shapeStr)
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

// Float32s encodes rows as a little-endian float32 row-major payload.
func Float32s(rows [][]float32) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		for _, v := range row {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
		}
	}
	return buf.Bytes()
}

// Float64s encodes rows as a little-endian float64 row-major payload.
func Float64s(rows [][]float32) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		for _, v := range row {
			binary.Write(&buf, binary.LittleEndian, math.Float64bits(float64(v)))
		}
	}
	return buf.Bytes()
}

// Unicode encodes words as fixed-width UTF-32 ("<U<width>") and returns the
// descriptor with the payload.
func Unicode(words []string) (string, []byte) {
	width := 1
	for _, w := range words {
		if n := len([]rune(w)); n > width {
			width = n
		}
	}
	var buf bytes.Buffer
	for _, w := range words {
		runes := []rune(w)
		for i := 0; i < width; i++ {
			var r rune
			if i < len(runes) {
				r = runes[i]
			}
			binary.Write(&buf, binary.LittleEndian, uint32(r))
		}
	}
	return fmt.Sprintf("<U%d", width), buf.Bytes()
}

// Zip writes entries into an .npz container at path.
func Zip(tb testing.TB, path string, entries map[string][]byte) {
	tb.Helper()
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			tb.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			tb.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
}

// WriteNPZ writes a float32 model with the given vocabulary and rows into dir
// and returns its path.
func WriteNPZ(tb testing.TB, dir, name string, vocab []string, rows [][]float32) string {
	tb.Helper()
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	descr, words := Unicode(vocab)
	path := filepath.Join(dir, name)
	Zip(tb, path, map[string][]byte{
		"emb.npy":    NPY("<f4", false, []int{len(rows), dim}, Float32s(rows)),
		"vocabs.npy": NPY(descr, false, []int{len(vocab)}, words),
	})
	return path
}
