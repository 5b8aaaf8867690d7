// Package handler exposes search over HTTP. It is a thin boundary: parse
// parameters, call the executor (through the query-result cache when one is
// configured), record analytics and render JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/querycache"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/middleware"
)

type SearchExecutor interface {
	Search(ctx context.Context, query, model string, topK int) (*executor.SearchResult, error)
	Models() []string
}

// IndexStatser reports model index cache statistics.
type IndexStatser interface {
	Stats() cache.Stats
}

// Options are the request defaults and limits.
type Options struct {
	DefaultModel string
	DefaultTopK  int
	MaxResults   int
}

type Handler struct {
	executor  SearchExecutor
	indices   IndexStatser
	cache     *querycache.QueryCache
	collector *analytics.Collector
	opts      Options
	logger    *slog.Logger
}

// New creates a Handler. queryCache and collector may be nil.
func New(exec SearchExecutor, indices IndexStatser, queryCache *querycache.QueryCache, collector *analytics.Collector, opts Options) *Handler {
	return &Handler{
		executor:  exec,
		indices:   indices,
		cache:     queryCache,
		collector: collector,
		opts:      opts,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&model=&k=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	query := params.Get("q")
	model := params.Get("model")
	if model == "" {
		model = h.opts.DefaultModel
	}
	k := h.opts.DefaultTopK
	if v := params.Get("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, apperrors.Of(apperrors.ErrInvalidInput, "k must be a non-negative integer"))
			return
		}
		k = parsed
	}
	if h.opts.MaxResults > 0 && k > h.opts.MaxResults {
		k = h.opts.MaxResults
	}

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, model, k, func() (*executor.SearchResult, error) {
			return h.executor.Search(ctx, query, model, k)
		})
	} else {
		result, err = h.executor.Search(ctx, query, model, k)
	}
	latencyMs := time.Since(start).Milliseconds()

	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Model:     model,
		TopK:      k,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if err != nil {
		log.Error("search failed", "query", query, "model", model, "kind", apperrors.Kind(err), "error", err)
		event.Type = analytics.EventError
		event.ErrorKind = apperrors.Kind(err)
		h.track(event)
		h.writeError(w, err)
		return
	}

	event.Returned = len(result.Results)
	if result.NoVector() {
		event.Type = analytics.EventNoVector
		event.NoVector = true
	}
	h.track(event)
	log.Info("search completed",
		"query", query,
		"model", model,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Models handles GET /api/v1/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"models":  h.executor.Models(),
		"default": h.opts.DefaultModel,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"index_cache": h.indices.Stats(),
	}
	if h.cache == nil {
		resp["query_cache"] = map[string]string{"status": "disabled"}
	} else {
		hits, misses := h.cache.Stats()
		total := hits + misses
		var hitRate float64
		if total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}
		resp["query_cache"] = map[string]any{
			"hits":     hits,
			"misses":   misses,
			"total":    total,
			"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheInvalidate handles POST /api/v1/cache/invalidate. Only query results
// are dropped; built model indices live for the whole process.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "query caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(event analytics.SearchEvent) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  apperrors.Kind(err),
	})
}
