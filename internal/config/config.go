// Package config loads runtime settings from defaults, an optional YAML file,
// .env files and CURRICULUM_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/reranker"
	"github.com/dshills/curriculum-search/internal/searcher"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CURRICULUM_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Ingest    IngestConfig    `yaml:"ingest"`
	LogLevel  string          `yaml:"log_level"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama or local
	Model     string `yaml:"model"`
	Host      string `yaml:"host"`
	APIKey    string `yaml:"api_key"`
	CacheSize int    `yaml:"cache_size"`
}

type SearchConfig struct {
	Limit         int           `yaml:"limit"`
	Threshold     float64       `yaml:"threshold"`
	Weight        float64       `yaml:"weight"`
	LexicalWeight float64       `yaml:"lexical_weight"`
	CombineFloor  float64       `yaml:"combine_floor"`
	CacheSize     int           `yaml:"cache_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// RerankConfig configures the LLM reranker. When Enabled is false, requests
// asking for a rerank are answered without one.
type RerankConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Provider    string        `yaml:"provider"` // ollama or openai
	Host        string        `yaml:"host"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	MergeOrder  bool          `yaml:"merge_order"`
}

type IngestConfig struct {
	PoolSize  int `yaml:"pool_size"`
	BatchSize int `yaml:"batch_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "curriculum.db"},
		DataDir:  "data",
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderOllama,
			Model:     embedder.DefaultOllamaModel,
			Host:      embedder.DefaultOllamaHost,
			CacheSize: 10000,
		},
		Search: SearchConfig{
			Limit:         searcher.DefaultLimit,
			Threshold:     0.4,
			Weight:        searcher.DefaultWeight,
			LexicalWeight: searcher.DefaultLexicalWeight,
			CombineFloor:  searcher.CombineFloor,
			CacheSize:     1000,
			CacheTTL:      searcher.DefaultCacheTTL,
		},
		Rerank: RerankConfig{
			Enabled:     true,
			Provider:    reranker.ProviderOllama,
			Host:        reranker.DefaultOllamaHost,
			Model:       reranker.DefaultOllamaModel,
			BatchSize:   reranker.DefaultBatchSize,
			Concurrency: reranker.DefaultConcurrency,
			Timeout:     reranker.DefaultTimeout,
		},
		Ingest: IngestConfig{
			BatchSize: embedder.DefaultBatchSize,
		},
		LogLevel: "info",
	}
}

type loader struct {
	file     string
	envFiles []string
	lookup   func(string) (string, bool)
}

// Option configures Load
type Option func(*loader)

// WithFile reads a YAML file on top of the defaults. A missing file is an error.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithEnvFiles replaces the .env files that are loaded. Missing files are ignored.
func WithEnvFiles(paths ...string) Option {
	return func(l *loader) { l.envFiles = paths }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *loader) { l.lookup = lookup }
}

// Load builds the configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	l := &loader{
		envFiles: []string{".env", ".env.local"},
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}

	cfg := Default()

	if l.file != "" {
		data, err := os.ReadFile(l.file)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	// godotenv.Load never overwrites variables that are already set
	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Default().Warn("skipping env file", "file", f, "err", err)
		}
	}

	if err := cfg.applyEnv(l.lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Database.Path, EnvPrefix+"DB_PATH")
	str(&c.DataDir, EnvPrefix+"DATA_DIR", "DATA_DIR")
	str(&c.LogLevel, EnvPrefix+"LOG_LEVEL")

	str(&c.Embedding.Provider, EnvPrefix+"EMBEDDING_PROVIDER")
	str(&c.Embedding.Model, EnvPrefix+"EMBEDDING_MODEL", "EMBEDDING_MODEL")
	str(&c.Embedding.Host, EnvPrefix+"EMBEDDING_HOST")
	str(&c.Embedding.APIKey, EnvPrefix+"EMBEDDING_API_KEY", "OPENAI_API_KEY")

	str(&c.Rerank.Provider, EnvPrefix+"RERANK_PROVIDER")
	str(&c.Rerank.Host, EnvPrefix+"RERANK_HOST", "OLLAMA_HOST")
	str(&c.Rerank.Model, EnvPrefix+"RERANK_MODEL", "OLLAMA_MODEL")
	str(&c.Rerank.APIKey, EnvPrefix+"RERANK_API_KEY", "OPENAI_API_KEY")

	var errs []error
	parse := func(key string, set func(string) error) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			}
		}
	}
	float := func(dst *float64) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.ParseFloat(v, 64)
			return err
		}
	}
	integer := func(dst *int) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return err
		}
	}

	parse("SEARCH_THRESHOLD", float(&c.Search.Threshold))
	parse("SEARCH_WEIGHT", float(&c.Search.Weight))
	parse("LEXICAL_WEIGHT", float(&c.Search.LexicalWeight))
	parse("SEARCH_CACHE_SIZE", integer(&c.Search.CacheSize))
	parse("RERANK_CONCURRENCY", integer(&c.Rerank.Concurrency))
	parse("INGEST_POOL_SIZE", integer(&c.Ingest.PoolSize))
	parse("RERANK_ENABLED", func(v string) (err error) {
		c.Rerank.Enabled, err = strconv.ParseBool(v)
		return err
	})
	parse("RERANK_TIMEOUT", func(v string) (err error) {
		c.Rerank.Timeout, err = time.ParseDuration(v)
		return err
	})

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.Path != "", "database.path is required")

	switch strings.ToLower(c.Embedding.Provider) {
	case embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		check(false, "embedding.provider %q is not one of openai, ollama, local", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Rerank.Provider) {
	case reranker.ProviderOpenAI, reranker.ProviderOllama:
	default:
		check(false, "rerank.provider %q is not one of openai, ollama", c.Rerank.Provider)
	}

	check(c.Search.Limit > 0 && c.Search.Limit <= searcher.MaxLimit, "search.limit must be between 1 and %d", searcher.MaxLimit)
	check(c.Search.Threshold >= 0 && c.Search.Threshold <= 1, "search.threshold must be between 0 and 1")
	check(c.Search.Weight >= 0 && c.Search.Weight <= 1, "search.weight must be between 0 and 1")
	check(c.Search.LexicalWeight >= 0, "search.lexical_weight cannot be negative")
	check(c.Search.CacheSize >= 0, "search.cache_size cannot be negative")
	check(c.Rerank.BatchSize > 0, "rerank.batch_size must be positive")
	check(c.Rerank.Concurrency > 0, "rerank.concurrency must be positive")
	check(c.Rerank.Timeout > 0, "rerank.timeout must be positive")
	check(c.Ingest.BatchSize > 0 && c.Ingest.BatchSize <= embedder.MaxBatchSize,
		"ingest.batch_size must be between 1 and %d", embedder.MaxBatchSize)
	check(c.Ingest.PoolSize >= 0, "ingest.pool_size cannot be negative")

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EmbedderConfig returns the settings for embedder.New.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		Host:      c.Embedding.Host,
		APIKey:    c.Embedding.APIKey,
		CacheSize: c.Embedding.CacheSize,
	}
}

// CompleterConfig returns the settings for reranker.NewCompleter.
func (c *Config) CompleterConfig() reranker.CompleterConfig {
	return reranker.CompleterConfig{
		Provider: c.Rerank.Provider,
		Host:     c.Rerank.Host,
		Model:    c.Rerank.Model,
		APIKey:   c.Rerank.APIKey,
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}
