package reranker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported completion providers
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
	DefaultOpenAIModel = "gpt-4o-mini"

	defaultMaxTokens = 8
)

var (
	// ErrUnknownProvider is returned for a provider name NewCompleter doesn't know
	ErrUnknownProvider = errors.New("unknown completion provider")

	// errStopStream aborts a streaming generation once enough text has arrived
	errStopStream = errors.New("stream stopped by consumer")
)

// Completer sends a prompt to a language model. onChunk, when non-nil, is
// called with the text received so far; returning false stops generation
// and Complete returns what arrived up to that point.
type Completer interface {
	Complete(ctx context.Context, prompt string, onChunk func(text string) bool) (string, error)
}

// LLMCompleter implements Completer over a langchaingo model
type LLMCompleter struct {
	model     llms.Model
	maxTokens int
	logger    *slog.Logger
}

// NewLLMCompleter wraps an existing langchaingo model.
func NewLLMCompleter(model llms.Model) *LLMCompleter {
	return &LLMCompleter{
		model:     model,
		maxTokens: defaultMaxTokens,
		logger:    slog.Default().With("component", "llm-completer"),
	}
}

// CompleterConfig selects and configures a completion backend
type CompleterConfig struct {
	Provider string // openai or ollama
	Host     string // base URL (openai) or server URL (ollama)
	Model    string
	APIKey   string
}

// NewCompleter builds an LLMCompleter for the configured provider.
func NewCompleter(cfg CompleterConfig) (*LLMCompleter, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		host := cfg.Host
		if host == "" {
			host = DefaultOllamaHost
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		llm, err := ollama.New(
			ollama.WithServerURL(host),
			ollama.WithModel(model),
		)
		if err != nil {
			return nil, err
		}
		return NewLLMCompleter(llm), nil

	case ProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		// Local OpenAI-compatible servers accept any token
		token := cfg.APIKey
		if token == "" {
			token = "none"
		}
		opts := []openai.Option{
			openai.WithToken(token),
			openai.WithModel(model),
		}
		if cfg.Host != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Host))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return NewLLMCompleter(llm), nil

	default:
		return nil, ErrUnknownProvider
	}
}

// Complete streams the model's reply for prompt.
func (c *LLMCompleter) Complete(ctx context.Context, prompt string, onChunk func(text string) bool) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var received strings.Builder
	stopped := false

	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(c.maxTokens),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			received.Write(chunk)
			if onChunk != nil && !onChunk(received.String()) {
				stopped = true
				return errStopStream
			}
			return nil
		}),
	)

	// Providers wrap the callback error differently; the flag is authoritative
	if stopped {
		return received.String(), nil
	}
	if err != nil {
		c.logger.Debug("completion failed", "err", err)
		return "", err
	}

	if received.Len() == 0 && resp != nil && len(resp.Choices) > 0 {
		return resp.Choices[0].Content, nil
	}
	return received.String(), nil
}
