package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding/embeddingtest"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(corpusPath, []byte("the cat sat\n\n  a dog ran  \n42\n"), 0o644))

	model := embeddingtest.WriteNPZ(t, dir, "m.npz",
		[]string{"cat", "dog"},
		[][]float32{{1, 0}, {0, 1}},
	)
	cfg := config.Default()
	cfg.Corpus.Path = corpusPath
	cfg.Models.Default = "Tiny"
	cfg.Models.Local = []config.LocalModel{
		{Name: "Tiny", Path: model},
		{Name: "Gone", Path: filepath.Join(dir, "gone.npz")},
	}
	cfg.Analytics.Enabled = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServerEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	core, err := NewCore(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 3, core.Corpus.Len())

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := NewServer(ctx, core)
	require.NoError(t, err)
	defer func() {
		cancel()
		srv.Close()
	}()
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	get := func(path string) (int, map[string]any) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	status, body := get("/api/v1/search?q=cat&k=5")
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	top := results[0].(map[string]any)
	assert.Equal(t, "the cat sat", top["text"])
	assert.Equal(t, 1.0, top["score"])

	status, body = get("/api/v1/search?q=" + "123+%24%24%24")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "query has no in-vocabulary tokens for the selected model", body["message"])

	status, body = get("/api/v1/search?q=cat&model=Gone")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ModelFileNotFound", body["kind"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Model file not found: "))

	status, body = get("/api/v1/search?q=cat&model=Nope")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Unknown model: Nope", body["error"])

	status, body = get("/api/v1/models")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"Tiny", "Gone"}, body["models"])

	status, body = get("/health/ready")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "degraded", body["status"])

	status, _ = get("/api/v1/analytics")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Tiny"}, core.Indices.Models())
}

func TestNewCoreMissingCorpus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "absent.txt")
	_, err := NewCore(cfg, prometheus.NewRegistry())
	require.Error(t, err)
}

func TestPreloadBuildsEveryModel(t *testing.T) {
	core, err := NewCore(testConfig(t), prometheus.NewRegistry())
	require.NoError(t, err)

	err = core.Preload(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gone")
	assert.Equal(t, []string{"Tiny"}, core.Indices.Models())
}

type schemaDB struct {
	err error
}

func (d schemaDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, d.err
}

func (d schemaDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, d.err
}

func (d schemaDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestOpenSnapshotStore(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	store := openSnapshotStore(context.Background(), schemaDB{err: errors.New("permission denied for schema public")}, log)
	assert.Nil(t, store)
	assert.Contains(t, buf.String(), "analytics schema setup failed")
	assert.Contains(t, buf.String(), "permission denied for schema public")

	buf.Reset()
	store = openSnapshotStore(context.Background(), schemaDB{}, log)
	assert.NotNil(t, store)
	assert.Empty(t, buf.String())
}
