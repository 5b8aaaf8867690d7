package embedding

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/resilience"
	"github.com/samber/lo"
)

// Loader turns a model name into a Space by resolving it in the catalog and
// reading its source. Remote spaces are restricted to corpusWords.
type Loader struct {
	catalog      *Catalog
	corpusWords  []string
	fetchTimeout time.Duration
	breaker      *resilience.CircuitBreaker
	logger       *slog.Logger
}

// NewLoader creates a Loader. A nil breaker gets a default one.
func NewLoader(catalog *Catalog, corpusWords []string, fetchTimeout time.Duration, breaker *resilience.CircuitBreaker) *Loader {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("vector-provider", resilience.CircuitBreakerConfig{})
	}
	return &Loader{
		catalog:      catalog,
		corpusWords:  corpusWords,
		fetchTimeout: fetchTimeout,
		breaker:      breaker,
		logger:       slog.Default().With("component", "embedding-loader"),
	}
}

// Catalog returns the catalog the loader resolves names against.
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Load reads the embedding space for model.
func (l *Loader) Load(ctx context.Context, model string) (*Space, error) {
	src, err := l.catalog.Resolve(model)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var space *Space
	switch s := src.(type) {
	case LocalFile:
		space, err = LoadNPZ(s.Path)
	case Remote:
		space, err = l.loadRemote(ctx, s.Provider)
	default:
		err = apperrors.Of(apperrors.ErrInternal, "unsupported source %T", src)
	}
	if err != nil {
		l.logger.Error("embedding load failed", "model", model, "error", err)
		return nil, err
	}
	l.logger.Info("embedding loaded",
		"model", model,
		"vocab", len(space.Vocabulary),
		"dim", space.Table.Dim,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return space, nil
}

func (l *Loader) loadRemote(ctx context.Context, p Provider) (*Space, error) {
	var vectors map[string][]float32
	err := l.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, l.fetchTimeout, "fetch "+p.Name(), func(ctx context.Context) error {
			v, err := p.Lookup(ctx, l.corpusWords)
			if err != nil {
				return err
			}
			vectors = v
			return nil
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, apperrors.ErrTimeout) {
		return nil, apperrors.Of(apperrors.ErrProviderUnavailable, "%s: %v", p.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	return Restrict(vectors, l.corpusWords)
}

// Restrict builds a Space from the vectors for words, in sorted word order.
// Words without a vector are skipped.
func Restrict(vectors map[string][]float32, words []string) (*Space, error) {
	vocab := lo.Uniq(lo.Filter(words, func(w string, _ int) bool {
		_, ok := vectors[w]
		return ok
	}))
	sort.Strings(vocab)

	dim := 0
	if len(vocab) > 0 {
		dim = len(vectors[vocab[0]])
	}
	data := make([]float32, 0, len(vocab)*dim)
	for _, w := range vocab {
		v := vectors[w]
		if len(v) != dim {
			return nil, apperrors.Of(apperrors.ErrInvalidModelFile,
				"vector for %q has %d components, want %d", w, len(v), dim)
		}
		data = append(data, v...)
	}
	table, err := NewTable(len(vocab), dim, data)
	if err != nil {
		return nil, err
	}
	return NewSpace(table, vocab)
}
