package indexer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
)

func testSpace(t *testing.T) *embedding.Space {
	t.Helper()
	table, err := embedding.NewTable(3, 2, []float32{
		1, 0,
		0, 1,
		1, 1,
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	space, err := embedding.NewSpace(table, []string{"cat", "dog", "bird"})
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return space
}

func TestBuildAlignment(t *testing.T) {
	lines := []string{
		"the cat",
		"nothing here matches",
		"a dog and a bird",
		"123 456",
		"Cat dog",
	}
	idx, err := Build("m", lines, testSpace(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantLines := []string{"the cat", "a dog and a bird", "Cat dog"}
	if !reflect.DeepEqual(idx.Lines, wantLines) {
		t.Fatalf("lines = %v, want %v", idx.Lines, wantLines)
	}
	if idx.Docs.Rows != len(idx.Lines) {
		t.Fatalf("doc rows %d != lines %d", idx.Docs.Rows, len(idx.Lines))
	}
	if idx.Dropped != 2 {
		t.Fatalf("dropped = %d, want 2", idx.Dropped)
	}
	for i, line := range idx.Lines {
		want, ok := idx.Vectorize(line)
		if !ok {
			t.Fatalf("line %q lost its vector", line)
		}
		if got := idx.Document(i); !reflect.DeepEqual(got, want) {
			t.Errorf("document %d = %v, want %v (line %q)", i, got, want, line)
		}
	}
}

func TestBuildExcludesOOVLines(t *testing.T) {
	lines := []string{"zebra giraffe", "cat", "Zebra!"}
	idx, err := Build("m", lines, testSpace(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, l := range idx.Lines {
		if l == "zebra giraffe" || l == "Zebra!" {
			t.Fatalf("OOV line %q was indexed", l)
		}
	}
}

func TestBuildEmptyCorpusIndex(t *testing.T) {
	_, err := Build("m", []string{"zebra", "42"}, testSpace(t))
	if !errors.Is(err, apperrors.ErrEmptyCorpusIndex) {
		t.Fatalf("expected ErrEmptyCorpusIndex, got %v", err)
	}
	_, err = Build("m", nil, testSpace(t))
	if !errors.Is(err, apperrors.ErrEmptyCorpusIndex) {
		t.Fatalf("empty corpus: expected ErrEmptyCorpusIndex, got %v", err)
	}
}

type fakeLoader struct {
	space *embedding.Space
	err   error
}

func (f fakeLoader) Load(context.Context, string) (*embedding.Space, error) {
	return f.space, f.err
}

func TestEngineBuild(t *testing.T) {
	e := NewEngine(fakeLoader{space: testSpace(t)}, []string{"cat", "dog", "fish"})
	idx, err := e.Build(context.Background(), "m")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Model != "m" || idx.Len() != 2 || idx.Dim() != 2 {
		t.Fatalf("unexpected index: model=%q len=%d dim=%d", idx.Model, idx.Len(), idx.Dim())
	}
	if e.CorpusSize() != 3 {
		t.Fatalf("corpus size = %d", e.CorpusSize())
	}

	loadErr := apperrors.Of(apperrors.ErrModelFileNotFound, "Model file not found: x")
	e = NewEngine(fakeLoader{err: loadErr}, []string{"cat"})
	if _, err := e.Build(context.Background(), "m"); !errors.Is(err, apperrors.ErrModelFileNotFound) {
		t.Fatalf("expected load error to propagate, got %v", err)
	}
}
