package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadTrimsAndSkipsBlank(t *testing.T) {
	in := "  first line \n\n   \nsecond\tline\r\n\nthird\n"
	c, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"first line", "second\tline", "third"}
	if !reflect.DeepEqual(c.Lines(), want) {
		t.Errorf("lines = %#v, want %#v", c.Lines(), want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing corpus")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte("a cat sat\nthe dog ran\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 lines, got %d", c.Len())
	}
}

func TestVocabularySortedDistinctAlpha(t *testing.T) {
	c := New([]string{"The cat sat.", "the Dog sat 42 times", ""})
	want := []string{"cat", "dog", "sat", "the", "times"}
	if got := c.Vocabulary(); !reflect.DeepEqual(got, want) {
		t.Errorf("vocabulary = %v, want %v", got, want)
	}
}
