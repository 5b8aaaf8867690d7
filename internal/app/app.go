// Package app wires configuration into the search core and, for the HTTP
// service, the optional Redis, Kafka and Postgres integrations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/context-search/internal/searcher/querycache"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/context-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Core is the search engine without any transport.
type Core struct {
	Config   *config.Config
	Corpus   *corpus.Corpus
	Catalog  *embedding.Catalog
	Indices  *cache.IndexCache
	Executor *executor.Executor
	Metrics  *metrics.Metrics
}

// NewCore loads the corpus, detects the remote-vector capability and builds
// an empty model index cache. Metrics register with reg (nil means the
// global registerer).
func NewCore(cfg *config.Config, reg prometheus.Registerer) (*Core, error) {
	c, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("corpus loaded", "path", cfg.Corpus.Path, "lines", c.Len())

	m := metrics.New(reg)
	provider := embedding.DetectProvider(cfg.Remote)
	catalog := embedding.NewCatalog(cfg.Models.Local, cfg.Remote.Name, provider)

	var corpusWords []string
	if catalog.HasRemote() {
		corpusWords = c.Vocabulary()
	}
	breaker := resilience.NewCircuitBreaker("vector-provider", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	loader := embedding.NewLoader(catalog, corpusWords, cfg.Remote.FetchTimeout, breaker)
	engine := indexer.NewEngine(loader, c.Lines())
	indices := cache.New(engine, m)

	slog.Info("search core ready", "models", catalog.Names(), "remote", catalog.HasRemote())
	return &Core{
		Config:   cfg,
		Corpus:   c,
		Catalog:  catalog,
		Indices:  indices,
		Executor: executor.New(indices, catalog, m, cfg.Search.Tracing),
		Metrics:  m,
	}, nil
}

// Preload builds every catalog model, at most parallel at a time. Failures
// are logged and joined; they do not stop the remaining builds.
func (c *Core) Preload(ctx context.Context, parallel int) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(max(parallel, 1))
	start := time.Now()
	for _, model := range c.Catalog.Names() {
		g.Go(func() error {
			if _, err := c.Indices.GetOrBuild(ctx, model); err != nil {
				slog.Warn("preload failed", "model", model, "kind", apperrors.Kind(err), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", model, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	slog.Info("preload finished", "models", len(c.Catalog.Names()), "failed", len(errs), "duration", time.Since(start))
	return errors.Join(errs...)
}

// Server is the HTTP service: the core plus optional integrations.
type Server struct {
	*Core
	Handler http.Handler

	redis     *pkgredis.Client
	collector *analytics.Collector
	producer  *kafka.Producer
	db        *postgres.Client
	logger    *slog.Logger
}

// NewServer wires the HTTP surface. Background loops (analytics collection,
// Kafka consumption, snapshotting) run until ctx is cancelled. Unreachable
// optional dependencies are logged and skipped.
func NewServer(ctx context.Context, core *Core) (*Server, error) {
	cfg := core.Config
	s := &Server{Core: core, logger: slog.Default().With("component", "app")}

	var queryCache *querycache.QueryCache
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			s.logger.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			s.redis = client
			queryCache = querycache.New(client, cfg.Redis.CacheTTL, core.Metrics)
			s.logger.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var (
		agg           *analytics.Aggregator
		analyticsH    *analytics.Handler
		snapshotStore *aggregator.Store
	)
	if cfg.Analytics.Enabled {
		agg = analytics.NewAggregator()
		var publisher analytics.Publisher = analytics.NewLocalPublisher(agg)
		if cfg.Kafka.Enabled {
			s.producer = kafka.NewProducer(cfg.Kafka)
			publisher = s.producer
			consumer := kafka.NewConsumer(cfg.Kafka, analytics.HandleEvent(agg))
			go func() {
				if err := consumer.Start(ctx); err != nil {
					s.logger.Error("analytics consumer error", "error", err)
				}
			}()
		}
		s.collector = analytics.NewCollector(publisher, cfg.Analytics.BufferSize)
		s.collector.Start(ctx)

		if cfg.Postgres.Enabled {
			db, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				s.logger.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
			} else if snapshotStore = openSnapshotStore(ctx, db.DB, s.logger); snapshotStore == nil {
				db.Close()
			} else {
				s.db = db
				snapshotStore.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			}
		}
		if snapshotStore != nil {
			analyticsH = analytics.NewHandler(agg, snapshotStore)
		} else {
			analyticsH = analytics.NewHandler(agg, nil)
		}
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		if core.Corpus.Len() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "corpus is empty"}
		}
		return health.Up(fmt.Sprintf("%d lines", core.Corpus.Len()))
	})
	checker.Register("model_cache", func(ctx context.Context) health.ComponentHealth {
		h := health.Up(fmt.Sprintf("%d of %d models built", len(core.Indices.Models()), len(core.Catalog.Names())))
		h.Details = map[string]any{"built": core.Indices.Models()}
		return h
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if s.redis == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.FromError(s.redis.Ping(ctx), true)
	})

	h := handler.New(core.Executor, core.Indices, queryCache, s.collector, handler.Options{
		DefaultModel: cfg.Models.Default,
		DefaultTopK:  cfg.Models.TopK,
		MaxResults:   cfg.Search.MaxResults,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/models", h.Models)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if analyticsH != nil {
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(middleware.NewLimiter(ctx, cfg.Server.RateLimit, time.Minute))(chain)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	}
	chain = middleware.Metrics(core.Metrics)(chain)
	chain = middleware.RequestID(chain)
	s.Handler = chain
	return s, nil
}

// openSnapshotStore prepares the snapshot schema on db. It returns nil, after
// logging why, when the schema cannot be created.
func openSnapshotStore(ctx context.Context, db aggregator.DB, log *slog.Logger) *aggregator.Store {
	store := aggregator.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Warn("analytics schema setup failed, snapshots disabled", "error", err)
		return nil
	}
	return store
}

// Close flushes analytics and releases connections.
func (s *Server) Close() {
	if s.collector != nil {
		s.collector.Close()
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Error("closing kafka producer", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("closing redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing postgres", "error", err)
		}
	}
}
