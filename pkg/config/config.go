// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Models, Remote, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Models    ModelsConfig    `yaml:"models"`
	Remote    RemoteConfig    `yaml:"remote"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// CorpusConfig points at the plain-text corpus, one searchable line per row.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// LocalModel maps a display name to a serialized array container on disk.
type LocalModel struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ModelsConfig lists the statically configured embedding models. Order is
// preserved and is the order models are offered in.
type ModelsConfig struct {
	Default string       `yaml:"default"`
	TopK    int          `yaml:"topK"`
	Local   []LocalModel `yaml:"local"`

	// Preload builds every model index in the background at startup.
	Preload bool `yaml:"preload"`
}

// RemoteConfig controls the optional pretrained-vector provider.
type RemoteConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	CacheDir     string        `yaml:"cacheDir"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// SearchConfig controls query limits and per-search tracing.
type SearchConfig struct {
	MaxResults int  `yaml:"maxResults"`
	Tracing    bool `yaml:"tracing"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings for analytics events.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	Topic         string   `yaml:"topic"`
}

// RedisConfig holds Redis connection and query-result caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// AnalyticsConfig controls search-event collection and snapshotting.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	if c.Corpus.Path == "" {
		return fmt.Errorf("config: corpus.path is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Models.TopK <= 0 {
		return fmt.Errorf("config: models.topK must be positive, got %d", c.Models.TopK)
	}
	seen := make(map[string]struct{}, len(c.Models.Local)+1)
	for _, m := range c.Models.Local {
		if m.Name == "" || m.Path == "" {
			return fmt.Errorf("config: local model entries need both name and path")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("config: duplicate model name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if c.Remote.Enabled {
		if _, dup := seen[c.Remote.Name]; dup {
			return fmt.Errorf("config: remote model name %q collides with a local model", c.Remote.Name)
		}
		seen[c.Remote.Name] = struct{}{}
	}
	if _, ok := seen[c.Models.Default]; !ok {
		return fmt.Errorf("config: default model %q is not configured", c.Models.Default)
	}
	return nil
}

// defaultConfig returns a Config matching the stock model set and corpus
// layout for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
			CORSOrigins:     []string{"*"},
		},
		Corpus: CorpusConfig{
			Path: "data/corpus.txt",
		},
		Models: ModelsConfig{
			Default: "Skipgram (NEG)",
			TopK:    10,
			Local: []LocalModel{
				{Name: "Skipgram", Path: "models/skipgram_softmax_w4.npz"},
				{Name: "Skipgram (NEG)", Path: "models/skipgram_neg_w4.npz"},
				{Name: "GloVe", Path: "models/glove_scratch_w4.npz"},
			},
		},
		Remote: RemoteConfig{
			Enabled:      false,
			Name:         "GloVe (gensim)",
			URL:          "",
			CacheDir:     "cache/vectors",
			FetchTimeout: 2 * time.Minute,
		},
		Search: SearchConfig{
			MaxResults: 100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "contextsearch",
			User:            "contextsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "contextsearch-group",
			Topic:         "search-analytics",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_SERVER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = limit
		}
	}
	if v := os.Getenv("CS_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("CS_MODELS_DEFAULT"); v != "" {
		cfg.Models.Default = v
	}
	if v := os.Getenv("CS_MODELS_TOPK"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Models.TopK = k
		}
	}
	if v := os.Getenv("CS_MODELS_PRELOAD"); v != "" {
		if preload, err := strconv.ParseBool(v); err == nil {
			cfg.Models.Preload = preload
		}
	}
	if v := os.Getenv("CS_REMOTE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Remote.Enabled = enabled
		}
	}
	if v := os.Getenv("CS_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("CS_REMOTE_CACHE_DIR"); v != "" {
		cfg.Remote.CacheDir = v
	}
	if v := os.Getenv("CS_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_ANALYTICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = enabled
		}
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
