package executor_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding/embeddingtest"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpusLines = []string{
	"the cat sat on the mat",
	"a dog barked at the mailman",
	"cats and dogs are friends",
	"1234 5678",
	"the king wore a crown",
	"queen and king ruled together",
}

type fixture struct {
	exec    *executor.Executor
	cache   *cache.IndexCache
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	animals := embeddingtest.WriteNPZ(t, dir, "animals.npz",
		[]string{"cat", "dog", "mat", "cats", "dogs"},
		[][]float32{{1, 0, 0}, {0.8, 0.2, 0}, {0.1, 0, 0.9}, {0.9, 0.1, 0}, {0.7, 0.3, 0}},
	)
	royals := embeddingtest.WriteNPZ(t, dir, "royals.npz",
		[]string{"King", "queen", "crown"},
		[][]float32{{0, 1, 0}, {0, 0.9, 0.1}, {0, 0.5, 0.5}},
	)
	local := []config.LocalModel{
		{Name: "Animals", Path: animals},
		{Name: "Royals", Path: royals},
		{Name: "Missing", Path: filepath.Join(dir, "missing.npz")},
	}
	catalog := embedding.NewCatalog(local, "Remote", nil)
	loader := embedding.NewLoader(catalog, nil, 0, nil)
	engine := indexer.NewEngine(loader, corpusLines)

	m := metrics.New(prometheus.NewRegistry())
	c := cache.New(engine, m)
	return fixture{exec: executor.New(c, catalog, m, true), cache: c, metrics: m}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	f := newFixture(t)
	res, err := f.exec.Search(context.Background(), "cat", "Animals", 3)
	require.NoError(t, err)
	require.Empty(t, res.Message)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "Animals", res.Model)
	assert.Equal(t, "cat", res.Query)
	for i := 1; i < len(res.Results); i++ {
		assert.GreaterOrEqual(t, res.Results[i-1].Score, res.Results[i].Score)
	}
	for _, r := range res.Results {
		assert.NotEqual(t, "1234 5678", r.Text)
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	f := newFixture(t)
	first, err := f.exec.Search(context.Background(), "dog and cat", "Animals", 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.exec.Search(context.Background(), "dog and cat", "Animals", 10)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSearchTopKBound(t *testing.T) {
	f := newFixture(t)
	// Animals retains the three lines mentioning cat, dog, mat, cats or dogs.
	for k, want := range map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 3, 100: 3} {
		res, err := f.exec.Search(context.Background(), "cat", "Animals", k)
		require.NoError(t, err)
		assert.Len(t, res.Results, want, "k=%d", k)
	}
}

func TestSearchNegativeTopK(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Search(context.Background(), "cat", "Animals", -1)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSearchNoQueryVector(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"123 $$$ !!!", "", "zebra"} {
		res, err := f.exec.Search(context.Background(), q, "Animals", 5)
		require.NoError(t, err, "query %q", q)
		assert.Empty(t, res.Results)
		assert.NotNil(t, res.Results)
		assert.Equal(t, executor.NoVectorMessage, res.Message)
		assert.True(t, res.NoVector())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("Animals", "no_vector")))
}

func TestSearchMissingFileLeavesCacheUsable(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Search(context.Background(), "cat", "Missing", 5)
	require.ErrorIs(t, err, apperrors.ErrModelFileNotFound)
	_, cached := f.cache.Lookup("Missing")
	assert.False(t, cached)

	res, err := f.exec.Search(context.Background(), "king", "Royals", 5)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Contains(t, []string{"the king wore a crown", "queen and king ruled together"}, res.Results[0].Text)
	assert.Equal(t, []string{"Royals"}, f.cache.Models())
}

func TestSearchUnknownAndRemoteModels(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Search(context.Background(), "cat", "Nope", 5)
	require.ErrorIs(t, err, apperrors.ErrUnknownModel)
	assert.Equal(t, "UnknownModel", apperrors.Kind(err))

	_, err = f.exec.Search(context.Background(), "cat", "Remote", 5)
	require.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestModelsListsLocalOnlyWithoutProvider(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"Animals", "Royals", "Missing"}, f.exec.Models())
}
