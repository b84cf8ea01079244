package reranker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel streams its chunks through the configured streaming func
type fakeModel struct {
	chunks []string
	err    error
	sent   int
}

func (f *fakeModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if f.err != nil {
		return nil, f.err
	}

	full := ""
	for _, c := range f.chunks {
		full += c
		if opts.StreamingFunc != nil {
			f.sent++
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, fmt.Errorf("streaming func returned an error: %w", err)
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLLMCompleter_StopsAtCompleteNumber(t *testing.T) {
	model := &fakeModel{chunks: []string{"Sco", "re: 7", ".5", " want", " het past"}}
	c := NewLLMCompleter(model)

	text, err := c.Complete(context.Background(), "prompt", func(text string) bool {
		return !numberComplete(text)
	})
	require.NoError(t, err)
	assert.Equal(t, "Score: 7.5 want", text)
	assert.Equal(t, 4, model.sent)

	raw, ok := ParseScore(text)
	require.True(t, ok)
	assert.InDelta(t, 7.5, raw, 1e-9)
}

func TestLLMCompleter_FullReply(t *testing.T) {
	c := NewLLMCompleter(&fakeModel{chunks: []string{"6"}})

	text, err := c.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "6", text)
}

func TestLLMCompleter_Error(t *testing.T) {
	c := NewLLMCompleter(&fakeModel{err: errors.New("503")})

	_, err := c.Complete(context.Background(), "prompt", nil)
	assert.Error(t, err)
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(CompleterConfig{Provider: "ollama", Host: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	c, err = NewCompleter(CompleterConfig{Provider: "OpenAI", Host: "http://localhost:8080/v1", Model: "local"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewCompleter(CompleterConfig{Provider: "bard"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
