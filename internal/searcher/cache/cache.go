// Package cache holds built model indices for the life of the process. Each
// model is built at most once at a time; failed builds leave no entry.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/metrics"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// Builder builds the index for one model.
type Builder interface {
	Build(ctx context.Context, model string) (*indexer.ModelIndex, error)
}

// IndexCache maps model name to its built index. Entries are never evicted.
type IndexCache struct {
	builder Builder
	group   singleflight.Group
	mu      sync.RWMutex
	indices map[string]*indexer.ModelIndex
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits     atomic.Int64
	builds   atomic.Int64
	failures atomic.Int64
}

// New creates an empty cache. m may be nil.
func New(builder Builder, m *metrics.Metrics) *IndexCache {
	return &IndexCache{
		builder: builder,
		indices: make(map[string]*indexer.ModelIndex),
		metrics: m,
		logger:  slog.Default().With("component", "index-cache"),
	}
}

// GetOrBuild returns the index for model, building it on first use.
// Concurrent callers for the same model share a single build. A caller whose
// ctx ends while waiting gets ctx.Err(); the build itself runs to completion
// and is cached if it succeeds.
func (c *IndexCache) GetOrBuild(ctx context.Context, model string) (*indexer.ModelIndex, error) {
	if idx, ok := c.Lookup(model); ok {
		c.hits.Add(1)
		return idx, nil
	}

	ch := c.group.DoChan(model, func() (any, error) {
		if idx, ok := c.Lookup(model); ok {
			return idx, nil
		}
		return c.build(context.WithoutCancel(ctx), model)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight build", "model", model)
		}
		return res.Val.(*indexer.ModelIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *IndexCache) build(ctx context.Context, model string) (*indexer.ModelIndex, error) {
	c.builds.Add(1)
	start := time.Now()
	idx, err := c.builder.Build(ctx, model)
	if c.metrics != nil {
		c.metrics.IndexBuildDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.failures.Add(1)
		if c.metrics != nil {
			c.metrics.IndexBuildsTotal.WithLabelValues(model, "error").Inc()
		}
		return nil, err
	}

	c.mu.Lock()
	c.indices[model] = idx
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IndexBuildsTotal.WithLabelValues(model, "ok").Inc()
		c.metrics.IndexDocuments.WithLabelValues(model).Set(float64(idx.Len()))
	}
	c.logger.Info("model index cached", "model", model, "documents", idx.Len())
	return idx, nil
}

// Lookup returns a built index without triggering a build.
func (c *IndexCache) Lookup(model string) (*indexer.ModelIndex, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indices[model]
	return idx, ok
}

// Models lists the models with a built index, sorted by name.
func (c *IndexCache) Models() []string {
	c.mu.RLock()
	names := lo.Keys(c.indices)
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// IndexStats describes one cached index.
type IndexStats struct {
	Model           string    `json:"model"`
	Documents       int       `json:"documents"`
	Dropped         int       `json:"dropped"`
	Vocabulary      int       `json:"vocabulary"`
	Dimension       int       `json:"dimension"`
	BuiltAt         time.Time `json:"built_at"`
	BuildDurationMs int64     `json:"build_duration_ms"`
}

// Stats summarises cache activity.
type Stats struct {
	Hits     int64        `json:"hits"`
	Builds   int64        `json:"builds"`
	Failures int64        `json:"failures"`
	Indices  []IndexStats `json:"indices"`
}

func (c *IndexCache) Stats() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Builds:   c.builds.Load(),
		Failures: c.failures.Load(),
		Indices:  []IndexStats{},
	}
	for _, name := range c.Models() {
		idx, ok := c.Lookup(name)
		if !ok {
			continue
		}
		s.Indices = append(s.Indices, IndexStats{
			Model:           name,
			Documents:       idx.Len(),
			Dropped:         idx.Dropped,
			Vocabulary:      idx.Vocab.Len(),
			Dimension:       idx.Dim(),
			BuiltAt:         idx.BuiltAt,
			BuildDurationMs: idx.BuildDuration.Milliseconds(),
		})
	}
	return s
}
