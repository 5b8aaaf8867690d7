package embedding

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/sbinet/npyio/npy"
)

// Entry names inside a model container, as written by numpy.savez with
// keyword arguments emb= and vocabs=.
const (
	EmbeddingsEntry = "emb.npy"
	VocabularyEntry = "vocabs.npy"
)

// LoadNPZ reads a model container: a 2-D float matrix under "emb" and a
// parallel 1-D string array under "vocabs". Matrices stored as float64 are
// narrowed to float32.
func LoadNPZ(path string) (*Space, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Of(apperrors.ErrModelFileNotFound, "Model file not found: %s", path)
		}
		return nil, fmt.Errorf("checking model file %s: %w", path, err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "%s is not an npz container: %v", path, err)
	}
	defer zr.Close()

	table, err := readTable(&zr.Reader, EmbeddingsEntry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	vocabulary, err := readVocabulary(&zr.Reader, VocabularyEntry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewSpace(table, vocabulary)
}

func openEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "missing array %q", strings.TrimSuffix(name, ".npy"))
}

func readTable(zr *zip.Reader, name string) (*Table, error) {
	rc, err := openEntry(zr, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := npy.NewReader(rc)
	if err != nil {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "reading %s header: %v", name, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "%s must be 2-D, got shape %v", name, shape)
	}
	rows, dim := shape[0], shape[1]

	var data []float32
	switch dtype := r.Header.Descr.Type; {
	case strings.HasSuffix(dtype, "f4"):
		data = make([]float32, rows*dim)
		if err := r.Read(&data); err != nil {
			return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "reading %s: %v", name, err)
		}
	case strings.HasSuffix(dtype, "f8"):
		wide := make([]float64, rows*dim)
		if err := r.Read(&wide); err != nil {
			return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "reading %s: %v", name, err)
		}
		data = make([]float32, len(wide))
		for i, v := range wide {
			data[i] = float32(v)
		}
	default:
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "%s has unsupported dtype %q", name, dtype)
	}

	if r.Header.Descr.Fortran {
		data = columnToRowMajor(data, rows, dim)
	}
	return NewTable(rows, dim, data)
}

func columnToRowMajor(data []float32, rows, cols int) []float32 {
	out := make([]float32, len(data))
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[i*cols+j] = data[j*rows+i]
		}
	}
	return out
}

// readVocabulary decodes a fixed-width string array (numpy "<U" or "S"
// dtype). The npy header is parsed by npyio; the element payload is the
// trailing rows*itemsize bytes of the entry.
func readVocabulary(zr *zip.Reader, name string) ([]string, error) {
	rc, err := openEntry(zr, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	r, err := npy.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "reading %s header: %v", name, err)
	}
	n := 1
	for _, d := range r.Header.Descr.Shape {
		n *= d
	}
	return decodeStrings(r.Header.Descr.Type, n, raw)
}

func decodeStrings(dtype string, n int, raw []byte) ([]string, error) {
	var order binary.ByteOrder = binary.LittleEndian
	descr := dtype
	switch {
	case strings.HasPrefix(descr, ">"):
		order = binary.BigEndian
		descr = descr[1:]
	case strings.HasPrefix(descr, "<"), strings.HasPrefix(descr, "|"), strings.HasPrefix(descr, "="):
		descr = descr[1:]
	}
	if descr == "" {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "empty vocabulary dtype")
	}
	kind := descr[0]
	if kind == 'O' {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile,
			"vocabulary is a pickled object array; re-save it with dtype=str")
	}
	width, err := strconv.Atoi(descr[1:])
	if err != nil || width < 0 {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "unsupported vocabulary dtype %q", dtype)
	}

	var itemSize int
	switch kind {
	case 'U':
		itemSize = 4 * width
	case 'S':
		itemSize = width
	default:
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "unsupported vocabulary dtype %q", dtype)
	}
	if n*itemSize > len(raw) {
		return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "vocabulary payload truncated")
	}

	payload := raw[len(raw)-n*itemSize:]
	words := make([]string, n)
	for i := range words {
		item := payload[i*itemSize : (i+1)*itemSize]
		if kind == 'S' {
			words[i] = string(bytes.TrimRight(item, "\x00"))
			continue
		}
		var sb strings.Builder
		for off := 0; off < len(item); off += 4 {
			cp := order.Uint32(item[off : off+4])
			if cp == 0 {
				break
			}
			sb.WriteRune(rune(cp))
		}
		words[i] = sb.String()
	}
	return words, nil
}
