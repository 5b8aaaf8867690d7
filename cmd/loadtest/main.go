// Command loadtest drives concurrent queries against a running search
// service and reports latency percentiles per model.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	TopK        int
	Models      []string
	Queries     []string
}

type modelStats struct {
	mu        sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	noVector  atomic.Int64
	perModel  map[string]*modelStats
	codesMu   sync.Mutex
	codes     map[int]int64
}

func NewStats(models []string) *Stats {
	s := &Stats{
		perModel: make(map[string]*modelStats, len(models)),
		codes:    make(map[int]int64),
	}
	for _, m := range models {
		s.perModel[m] = &modelStats{latencies: make([]time.Duration, 0, 10000)}
	}
	return s
}

func (s *Stats) Record(model string, d time.Duration, status int, noVector bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	s.codesMu.Lock()
	s.codes[status]++
	s.codesMu.Unlock()
	if status < 200 || status >= 300 {
		s.errors.Add(1)
		return
	}
	s.success.Add(1)
	if noVector {
		s.noVector.Add(1)
	}
	ms := s.perModel[model]
	ms.mu.Lock()
	ms.latencies = append(ms.latencies, d)
	ms.mu.Unlock()
}

var defaultQueries = []string{
	"the king and the queen",
	"a cat sat on the mat",
	"stock markets fell sharply",
	"the army crossed the river",
	"children playing in the park",
	"new treatment for the disease",
	"football match ended in a draw",
	"ancient roman emperor",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	topK := flag.Int("k", 10, "results per query")
	models := flag.String("models", "", "comma-separated models to query (default: all served models)")
	queryFile := flag.String("queries", "", "file with one query per line (default: built-in set)")
	flag.Parse()

	client := &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		TopK:        *topK,
		Queries:     defaultQueries,
	}
	if *queryFile != "" {
		qs, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loadtest:", err)
			os.Exit(1)
		}
		cfg.Queries = qs
	}
	if *models != "" {
		cfg.Models = strings.Split(*models, ",")
	} else {
		served, err := fetchModels(client, cfg.BaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loadtest: listing models:", err)
			os.Exit(1)
		}
		cfg.Models = served
	}

	fmt.Println("=== Context Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Models:      %s\n", strings.Join(cfg.Models, ", "))
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	// The first query per model pays for its index build; do it before timing.
	warmUp(client, cfg)

	stats := run(client, cfg)
	if !printReport(stats, cfg) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var qs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			qs = append(qs, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return qs, nil
}

func fetchModels(client *http.Client, base string) ([]string, error) {
	resp, err := client.Get(base + "/api/v1/models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Models) == 0 {
		return nil, fmt.Errorf("service reports no models")
	}
	return body.Models, nil
}

func searchURL(cfg Config, query, model string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("model", model)
	v.Set("k", strconv.Itoa(cfg.TopK))
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
}

func warmUp(client *http.Client, cfg Config) {
	for _, model := range cfg.Models {
		start := time.Now()
		resp, err := client.Get(searchURL(cfg, cfg.Queries[0], model))
		if err != nil {
			fmt.Printf("warm-up %-20s error: %v\n", model, err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		fmt.Printf("warm-up %-20s %d in %s\n", model, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}
	fmt.Println()
}

func run(client *http.Client, cfg Config) *Stats {
	stats := NewStats(cfg.Models)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ; i++ {
				if ctx.Err() != nil {
					return
				}
				query := cfg.Queries[i%len(cfg.Queries)]
				model := cfg.Models[i%len(cfg.Models)]

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(cfg, query, model), nil)
				if err != nil {
					panic(fmt.Sprintf("creating request: %v", err))
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(model, time.Since(start), 0, false, err)
					}
					continue
				}
				var body struct {
					Message string `json:"message"`
				}
				json.NewDecoder(resp.Body).Decode(&body)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(model, time.Since(start), resp.StatusCode, body.Message != "", nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, cfg Config) bool {
	total := stats.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", stats.success.Load())
	fmt.Printf("No vector:       %d\n", stats.noVector.Load())
	fmt.Printf("Errors:          %d\n", stats.errors.Load())
	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(stats.errors.Load())/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/cfg.Duration.Seconds())

	fmt.Println()
	fmt.Println("=== Latency by model ===")
	fmt.Printf("%-20s %8s %10s %10s %10s %10s\n", "model", "count", "p50", "p90", "p99", "max")
	for _, model := range cfg.Models {
		ms := stats.perModel[model]
		ms.mu.Lock()
		lat := append([]time.Duration(nil), ms.latencies...)
		ms.mu.Unlock()
		if len(lat) == 0 {
			fmt.Printf("%-20s %8d\n", model, 0)
			continue
		}
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		fmt.Printf("%-20s %8d %10s %10s %10s %10s\n", model, len(lat),
			percentile(lat, 50), percentile(lat, 90), percentile(lat, 99), lat[len(lat)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.codesMu.Lock()
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.codes[code])
	}
	stats.codesMu.Unlock()
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
