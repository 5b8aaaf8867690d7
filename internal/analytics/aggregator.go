package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches    int64            `json:"total_searches"`
	CacheHits        int64            `json:"cache_hits"`
	NoVectorCount    int64            `json:"no_vector_count"`
	ErrorCount       int64            `json:"error_count"`
	ZeroResultCount  int64            `json:"zero_result_count"`
	SearchesByModel  map[string]int64 `json:"searches_by_model"`
	ErrorsByKind     map[string]int64 `json:"errors_by_kind"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     int64            `json:"p50_latency_ms"`
	P95LatencyMs     int64            `json:"p95_latency_ms"`
	P99LatencyMs     int64            `json:"p99_latency_ms"`
	TopQueries       []QueryCount     `json:"top_queries"`
	NoVectorQueries  []QueryCount     `json:"no_vector_queries"`
	QueriesPerMinute float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search events. It is safe for
// concurrent use.
type Aggregator struct {
	mu              sync.RWMutex
	totalSearches   int64
	cacheHits       int64
	noVector        int64
	errors          int64
	zeroResults     int64
	byModel         map[string]int64
	byErrorKind     map[string]int64
	latencies       []int64
	latencyNext     int
	queryCounts     map[string]int64
	noVectorQueries map[string]int64
	startTime       time.Time
	logger          *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byModel:         make(map[string]int64),
		byErrorKind:     make(map[string]int64),
		latencies:       make([]int64, 0, 1024),
		queryCounts:     make(map[string]int64),
		noVectorQueries: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes Kafka messages into the aggregator.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the totals.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.byModel[event.Model]++
	if event.CacheHit {
		a.cacheHits++
	}
	switch {
	case event.Type == EventError:
		a.errors++
		a.byErrorKind[event.ErrorKind]++
	case event.NoVector:
		a.noVector++
		a.noVectorQueries[event.Query]++
	case event.Returned == 0:
		a.zeroResults++
	}
	if event.Type != EventError {
		a.queryCounts[event.Query]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		NoVectorCount:   a.noVector,
		ErrorCount:      a.errors,
		ZeroResultCount: a.zeroResults,
		SearchesByModel: copyCounts(a.byModel),
		ErrorsByKind:    copyCounts(a.byErrorKind),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.NoVectorQueries = topN(a.noVectorQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
