package embedding_test

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding/embeddingtest"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/resilience"
)

func TestLoadNPZ(t *testing.T) {
	dir := t.TempDir()
	path := embeddingtest.WriteNPZ(t, dir, "m.npz",
		[]string{"cat", "dog", "émile"},
		[][]float32{{1, 0}, {0, 1}, {0.5, 0.5}},
	)

	space, err := embedding.LoadNPZ(path)
	if err != nil {
		t.Fatalf("LoadNPZ: %v", err)
	}
	if want := []string{"cat", "dog", "émile"}; !reflect.DeepEqual(space.Vocabulary, want) {
		t.Fatalf("vocabulary = %v, want %v", space.Vocabulary, want)
	}
	if space.Table.Rows != 3 || space.Table.Dim != 2 {
		t.Fatalf("table shape = %dx%d, want 3x2", space.Table.Rows, space.Table.Dim)
	}
	if got := space.Table.Row(1); got[0] != 0 || got[1] != 1 {
		t.Fatalf("row 1 = %v, want [0 1]", got)
	}
}

func TestLoadNPZMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.npz")
	_, err := embedding.LoadNPZ(path)
	if !errors.Is(err, apperrors.ErrModelFileNotFound) {
		t.Fatalf("expected ErrModelFileNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Model file not found: "+path) {
		t.Fatalf("error message %q should name the path", err)
	}
}

func TestLoadNPZFloat64Narrowed(t *testing.T) {
	dir := t.TempDir()
	rows := [][]float32{{0.25, -1}, {2, 3}}
	descr, words := embeddingtest.Unicode([]string{"a", "b"})
	path := filepath.Join(dir, "f8.npz")
	embeddingtest.Zip(t, path, map[string][]byte{
		embedding.EmbeddingsEntry: embeddingtest.NPY("<f8", false, []int{2, 2}, embeddingtest.Float64s(rows)),
		embedding.VocabularyEntry: embeddingtest.NPY(descr, false, []int{2}, words),
	})

	space, err := embedding.LoadNPZ(path)
	if err != nil {
		t.Fatalf("LoadNPZ: %v", err)
	}
	if !reflect.DeepEqual(space.Table.Data, []float32{0.25, -1, 2, 3}) {
		t.Fatalf("data = %v", space.Table.Data)
	}
}

func TestLoadNPZFortranOrder(t *testing.T) {
	dir := t.TempDir()
	// Column-major storage of [[1 2] [3 4]].
	cols := [][]float32{{1, 3}, {2, 4}}
	descr, words := embeddingtest.Unicode([]string{"a", "b"})
	path := filepath.Join(dir, "fortran.npz")
	embeddingtest.Zip(t, path, map[string][]byte{
		embedding.EmbeddingsEntry: embeddingtest.NPY("<f4", true, []int{2, 2}, embeddingtest.Float32s(cols)),
		embedding.VocabularyEntry: embeddingtest.NPY(descr, false, []int{2}, words),
	})

	space, err := embedding.LoadNPZ(path)
	if err != nil {
		t.Fatalf("LoadNPZ: %v", err)
	}
	if !reflect.DeepEqual(space.Table.Data, []float32{1, 2, 3, 4}) {
		t.Fatalf("data = %v, want row-major [1 2 3 4]", space.Table.Data)
	}
}

func TestLoadNPZByteStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bytes.npz")
	embeddingtest.Zip(t, path, map[string][]byte{
		embedding.EmbeddingsEntry: embeddingtest.NPY("<f4", false, []int{2, 1}, embeddingtest.Float32s([][]float32{{1}, {2}})),
		embedding.VocabularyEntry: embeddingtest.NPY("|S3", false, []int{2}, []byte("cat\x00\x00\x00")[:6]),
	})
	space, err := embedding.LoadNPZ(path)
	if err != nil {
		t.Fatalf("LoadNPZ: %v", err)
	}
	if !reflect.DeepEqual(space.Vocabulary, []string{"cat", ""}) {
		t.Fatalf("vocabulary = %q", space.Vocabulary)
	}
}

func TestLoadNPZInvalid(t *testing.T) {
	dir := t.TempDir()
	descr, words := embeddingtest.Unicode([]string{"a", "b"})
	emb := embeddingtest.NPY("<f4", false, []int{2, 2}, embeddingtest.Float32s([][]float32{{1, 2}, {3, 4}}))

	tests := []struct {
		name    string
		entries map[string][]byte
	}{
		{"missing vocabulary", map[string][]byte{embedding.EmbeddingsEntry: emb}},
		{"missing embeddings", map[string][]byte{embedding.VocabularyEntry: embeddingtest.NPY(descr, false, []int{2}, words)}},
		{"pickled vocabulary", map[string][]byte{
			embedding.EmbeddingsEntry: emb,
			embedding.VocabularyEntry: embeddingtest.NPY("|O", false, []int{2}, make([]byte, 16)),
		}},
		{"row mismatch", map[string][]byte{
			embedding.EmbeddingsEntry: emb,
			embedding.VocabularyEntry: embeddingtest.NPY("<U1", false, []int{1}, words[:4]),
		}},
		{"one-dimensional embeddings", map[string][]byte{
			embedding.EmbeddingsEntry: embeddingtest.NPY("<f4", false, []int{4}, embeddingtest.Float32s([][]float32{{1, 2, 3, 4}})),
			embedding.VocabularyEntry: embeddingtest.NPY(descr, false, []int{2}, words),
		}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".npz")
			embeddingtest.Zip(t, path, tt.entries)
			_, err := embedding.LoadNPZ(path)
			if !errors.Is(err, apperrors.ErrInvalidModelFile) {
				t.Fatalf("case %d: expected ErrInvalidModelFile, got %v", i, err)
			}
		})
	}
}

func TestLoadNPZNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.npz")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := embedding.LoadNPZ(path); !errors.Is(err, apperrors.ErrInvalidModelFile) {
		t.Fatalf("expected ErrInvalidModelFile, got %v", err)
	}
}

type stubProvider struct {
	vectors map[string][]float32
	err     error
	block   bool
	calls   atomic.Int32
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Lookup(ctx context.Context, words []string) (map[string][]float32, error) {
	p.calls.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string][]float32)
	for _, w := range words {
		if v, ok := p.vectors[w]; ok {
			out[w] = v
		}
	}
	return out, nil
}

func TestCatalogResolve(t *testing.T) {
	local := []config.LocalModel{{Name: "A", Path: "a.npz"}, {Name: "B", Path: "b.npz"}}

	c := embedding.NewCatalog(local, "Remote", nil)
	if got := c.Names(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("names without provider = %v", got)
	}
	src, err := c.Resolve("B")
	if err != nil {
		t.Fatalf("Resolve(B): %v", err)
	}
	if lf, ok := src.(embedding.LocalFile); !ok || lf.Path != "b.npz" {
		t.Fatalf("Resolve(B) = %#v", src)
	}
	if _, err := c.Resolve("Remote"); !errors.Is(err, apperrors.ErrProviderUnavailable) {
		t.Fatalf("remote without provider: got %v", err)
	}
	_, err = c.Resolve("nope")
	if !errors.Is(err, apperrors.ErrUnknownModel) || !strings.Contains(err.Error(), "Unknown model: nope") {
		t.Fatalf("unknown model: got %v", err)
	}

	c = embedding.NewCatalog(local, "Remote", &stubProvider{})
	if got := c.Names(); !reflect.DeepEqual(got, []string{"A", "B", "Remote"}) {
		t.Fatalf("names with provider = %v", got)
	}
	if src, err := c.Resolve("Remote"); err != nil {
		t.Fatalf("Resolve(Remote): %v", err)
	} else if _, ok := src.(embedding.Remote); !ok {
		t.Fatalf("Resolve(Remote) = %#v", src)
	}
}

func TestLoaderRemoteRestrictsToCorpus(t *testing.T) {
	p := &stubProvider{vectors: map[string][]float32{
		"dog":   {0, 1},
		"cat":   {1, 0},
		"zebra": {1, 1},
	}}
	catalog := embedding.NewCatalog(nil, "Remote", p)
	loader := embedding.NewLoader(catalog, []string{"dog", "cat", "unseen"}, time.Second, nil)

	space, err := loader.Load(context.Background(), "Remote")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(space.Vocabulary, []string{"cat", "dog"}) {
		t.Fatalf("vocabulary = %v, want [cat dog]", space.Vocabulary)
	}
	if !reflect.DeepEqual(space.Table.Data, []float32{1, 0, 0, 1}) {
		t.Fatalf("data = %v", space.Table.Data)
	}
}

func TestLoaderCircuitOpenIsProviderUnavailable(t *testing.T) {
	p := &stubProvider{err: errors.New("boom")}
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	loader := embedding.NewLoader(embedding.NewCatalog(nil, "Remote", p), []string{"a"}, time.Second, breaker)

	if _, err := loader.Load(context.Background(), "Remote"); err == nil {
		t.Fatal("expected first load to fail")
	}
	_, err := loader.Load(context.Background(), "Remote")
	if !errors.Is(err, apperrors.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable once the breaker is open, got %v", err)
	}
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
}

func TestLoaderTimeoutIsProviderUnavailable(t *testing.T) {
	p := &stubProvider{block: true}
	loader := embedding.NewLoader(embedding.NewCatalog(nil, "Remote", p), []string{"a"}, 10*time.Millisecond, nil)

	_, err := loader.Load(context.Background(), "Remote")
	if !errors.Is(err, apperrors.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable on fetch timeout, got %v", err)
	}
}

func TestRestrictDimensionMismatch(t *testing.T) {
	_, err := embedding.Restrict(map[string][]float32{"a": {1, 2}, "b": {1}}, []string{"a", "b"})
	if !errors.Is(err, apperrors.ErrInvalidModelFile) {
		t.Fatalf("expected ErrInvalidModelFile, got %v", err)
	}
}

const gloveText = "cat 1 0\ndog 0 1\nbird 0.5 0.5\n"

func TestGloVeProviderLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.txt")
	if err := os.WriteFile(path, []byte("3 2\n"+gloveText), 0o644); err != nil {
		t.Fatal(err)
	}
	p := embedding.NewGloVeProvider("GloVe", path, dir)
	got, err := p.Lookup(context.Background(), []string{"dog", "cat", "fish"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	want := map[string][]float32{"cat": {1, 0}, "dog": {0, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup = %v, want %v", got, want)
	}
}

func TestGloVeProviderDownloadsGzipOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gz := gzip.NewWriter(w)
		gz.Write([]byte(gloveText))
		gz.Close()
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	p := embedding.NewGloVeProvider("GloVe", srv.URL+"/glove.txt.gz", cacheDir)
	for i := 0; i < 2; i++ {
		got, err := p.Lookup(context.Background(), []string{"bird"})
		if err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
		if !reflect.DeepEqual(got["bird"], []float32{0.5, 0.5}) {
			t.Fatalf("bird = %v", got["bird"])
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("server hit %d times, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "glove.txt.gz")); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}
}

func TestGloVeProviderNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := embedding.NewGloVeProvider("GloVe", srv.URL+"/missing.txt", t.TempDir())
	_, err := p.Lookup(context.Background(), []string{"cat"})
	if !errors.Is(err, apperrors.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("server hit %d times, want 1 (no retry on 404)", n)
	}
}

func TestDetectProvider(t *testing.T) {
	if p := embedding.DetectProvider(config.RemoteConfig{Enabled: false, URL: "x"}); p != nil {
		t.Fatal("disabled capability should yield nil")
	}
	if p := embedding.DetectProvider(config.RemoteConfig{Enabled: true}); p != nil {
		t.Fatal("missing url should yield nil")
	}
	missing := filepath.Join(t.TempDir(), "none.txt")
	if p := embedding.DetectProvider(config.RemoteConfig{Enabled: true, URL: missing}); p != nil {
		t.Fatal("missing local file should yield nil")
	}
	if p := embedding.DetectProvider(config.RemoteConfig{Enabled: true, Name: "G", URL: "https://example.invalid/v.txt"}); p == nil || p.Name() != "G" {
		t.Fatalf("http source should yield a provider, got %v", p)
	}
}
