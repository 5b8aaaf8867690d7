// Package executor runs a similarity search: resolve the model index,
// vectorize the query in that model's space, score every document and keep
// the top K.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/tracing"
)

// NoVectorMessage explains an empty result caused by a query with no
// in-vocabulary tokens. It is not an error.
const NoVectorMessage = "query has no in-vocabulary tokens for the selected model"

type SearchResult struct {
	Query   string             `json:"query"`
	Model   string             `json:"model"`
	Results []ranker.ScoredDoc `json:"results"`
	Message string             `json:"message,omitempty"`
}

// NoVector reports whether the query produced no vector.
func (r *SearchResult) NoVector() bool {
	return r.Message == NoVectorMessage
}

// IndexSource yields the built index for a model.
type IndexSource interface {
	GetOrBuild(ctx context.Context, model string) (*indexer.ModelIndex, error)
}

// ModelLister lists the models offered for search.
type ModelLister interface {
	Names() []string
}

type Executor struct {
	indices IndexSource
	models  ModelLister
	metrics *metrics.Metrics
	tracing bool
	logger  *slog.Logger
}

// New creates an Executor. m may be nil; tracing enables per-search span
// logging at debug level.
func New(indices IndexSource, models ModelLister, m *metrics.Metrics, tracing bool) *Executor {
	return &Executor{
		indices: indices,
		models:  models,
		metrics: m,
		tracing: tracing,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Models lists the models available for search.
func (e *Executor) Models() []string {
	return e.models.Names()
}

// Search returns up to topK corpus lines most similar to query under model,
// highest score first. Build failures for the model are returned as errors;
// a query without in-vocabulary tokens yields an empty result with
// NoVectorMessage.
func (e *Executor) Search(ctx context.Context, query, model string, topK int) (*SearchResult, error) {
	if topK < 0 {
		return nil, apperrors.Of(apperrors.ErrInvalidInput, "top_k must be non-negative, got %d", topK)
	}
	start := time.Now()
	log := logger.FromContext(ctx)
	if e.tracing {
		var root *tracing.Span
		ctx, root = tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
		root.SetAttr("model", model)
		defer func() {
			root.End()
			root.Log(log)
		}()
	}

	_, span := tracing.StartChildSpan(ctx, "resolve")
	idx, err := e.indices.GetOrBuild(ctx, model)
	span.End()
	if err != nil {
		e.observe(model, "error", start, 0)
		log.Warn("search failed", "model", model, "kind", apperrors.Kind(err), "error", err)
		return nil, err
	}

	result := &SearchResult{Query: query, Model: model, Results: []ranker.ScoredDoc{}}

	_, span = tracing.StartChildSpan(ctx, "vectorize")
	qvec, ok := idx.Vectorize(query)
	span.End()
	if !ok {
		result.Message = NoVectorMessage
		e.observe(model, "no_vector", start, 0)
		log.Info("query has no vector", "model", model, "query", query)
		return result, nil
	}

	_, span = tracing.StartChildSpan(ctx, "rank")
	result.Results = ranker.Rank(idx, qvec, topK)
	span.SetAttr("documents", idx.Len())
	span.SetAttr("returned", len(result.Results))
	span.End()

	e.observe(model, "ok", start, len(result.Results))
	log.Info("query executed",
		"model", model,
		"query", query,
		"documents", idx.Len(),
		"returned", len(result.Results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (e *Executor) observe(model, resultType string, start time.Time, returned int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(model, resultType).Inc()
	e.metrics.SearchLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if resultType != "error" {
		e.metrics.SearchResultsCount.Observe(float64(returned))
	}
}
