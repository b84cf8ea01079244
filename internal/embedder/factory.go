package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // openai, ollama, local
	Model     string
	Host      string // base URL (openai) or host (ollama)
	APIKey    string
	CacheSize int
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.Host, cfg.APIKey, cfg.Model, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.Host, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. CURRICULUM_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present → openai
//  3. local
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv("CURRICULUM_EMBEDDING_MODEL"),
		Host:      os.Getenv("CURRICULUM_EMBEDDING_HOST"),
		APIKey:    os.Getenv("OPENAI_API_KEY"),
		CacheSize: 10000,
	})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv("CURRICULUM_EMBEDDING_PROVIDER"); provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
