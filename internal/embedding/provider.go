package embedding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/resilience"
	"github.com/klauspost/compress/gzip"
)

// Provider is a pretrained vector space that can be queried for a set of
// words. Words it does not know are absent from the returned map.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, words []string) (map[string][]float32, error)
}

// DetectProvider resolves the remote-vector capability once at startup. It
// returns nil when the capability is disabled or its source is missing.
func DetectProvider(cfg config.RemoteConfig) Provider {
	logger := slog.Default().With("component", "vector-provider")
	if !cfg.Enabled {
		return nil
	}
	if cfg.URL == "" {
		logger.Warn("remote vectors enabled without a url; capability disabled", "model", cfg.Name)
		return nil
	}
	if !isHTTP(cfg.URL) {
		if _, err := os.Stat(localPath(cfg.URL)); err != nil {
			logger.Warn("remote vector file not found; capability disabled", "path", cfg.URL, "error", err)
			return nil
		}
	}
	logger.Info("remote vector provider available", "model", cfg.Name, "source", cfg.URL)
	return NewGloVeProvider(cfg.Name, cfg.URL, cfg.CacheDir)
}

// GloVeProvider serves vectors from a GloVe/word2vec text file ("word v1 ...
// vd" per line, optionally gzip-compressed). HTTP sources are downloaded once
// into cacheDir and reused afterwards.
type GloVeProvider struct {
	name     string
	source   string
	cacheDir string
	client   *http.Client
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

func NewGloVeProvider(name, source, cacheDir string) *GloVeProvider {
	return &GloVeProvider{
		name:     name,
		source:   source,
		cacheDir: cacheDir,
		client:   &http.Client{},
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
		},
		logger: slog.Default().With("component", "vector-provider", "model", name),
	}
}

func (p *GloVeProvider) Name() string {
	return p.name
}

// Lookup returns vectors for the requested words present in the file.
func (p *GloVeProvider) Lookup(ctx context.Context, words []string) (map[string][]float32, error) {
	path, err := p.ensureLocal(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	vectors, err := readVectors(ctx, path, words)
	if err != nil {
		return nil, err
	}
	p.logger.Info("vectors scanned",
		"path", path,
		"requested", len(words),
		"found", len(vectors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return vectors, nil
}

func (p *GloVeProvider) ensureLocal(ctx context.Context) (string, error) {
	if !isHTTP(p.source) {
		return localPath(p.source), nil
	}
	u, err := url.Parse(p.source)
	if err != nil {
		return "", fmt.Errorf("parsing vector url: %w", err)
	}
	dest := filepath.Join(p.cacheDir, filepath.Base(u.Path))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating vector cache dir: %w", err)
	}
	err = resilience.Retry(ctx, "download vectors", p.retry, isPermanent, func() error {
		return p.download(ctx, p.source, dest)
	})
	if err != nil {
		return "", apperrors.Of(apperrors.ErrProviderUnavailable, "fetching %s: %v", p.source, err)
	}
	return dest, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isPermanent(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

func (p *GloVeProvider) download(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename vectors: %w", err)
	}
	p.logger.Info("vectors downloaded", "url", src, "bytes", n, "path", dest)
	return nil
}

func readVectors(ctx context.Context, path string, words []string) (map[string][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Of(apperrors.ErrProviderUnavailable, "opening vectors: %v", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "%s: %v", path, err)
		}
		defer gz.Close()
		r = gz
	}

	wanted := make(map[string]struct{}, len(words))
	for _, w := range words {
		wanted[w] = struct{}{}
	}
	found := make(map[string][]float32, len(wanted))
	dim := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if lineNo%50000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line := scanner.Text()
		word, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if lineNo == 1 && isWord2VecHeader(word, rest) {
			continue
		}
		if _, want := wanted[word]; !want {
			continue
		}
		if _, dup := found[word]; dup {
			continue
		}
		fields := strings.Fields(rest)
		if dim == 0 {
			dim = len(fields)
		}
		if len(fields) != dim {
			return nil, apperrors.Of(apperrors.ErrInvalidModelFile,
				"%s:%d: expected %d components, got %d", path, lineNo, dim, len(fields))
		}
		vec := make([]float32, dim)
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, apperrors.Of(apperrors.ErrInvalidModelFile, "%s:%d: %v", path, lineNo, err)
			}
			vec[i] = float32(v)
		}
		found[word] = vec
		if len(found) == len(wanted) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return found, nil
}

// isWord2VecHeader recognises the "<count> <dim>" first line of word2vec
// text files.
func isWord2VecHeader(first, rest string) bool {
	if _, err := strconv.Atoi(first); err != nil {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(rest))
	return err == nil
}

func isHTTP(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func localPath(src string) string {
	return strings.TrimPrefix(src, "file://")
}
