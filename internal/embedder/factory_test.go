package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		openai   string
		want     string
	}{
		{name: "explicit", provider: "Ollama", want: ProviderOllama},
		{name: "openai key", openai: "sk-test", want: ProviderOpenAI},
		{name: "fallback", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CURRICULUM_EMBEDDING_PROVIDER", tt.provider)
			t.Setenv("OPENAI_API_KEY", tt.openai)
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("CURRICULUM_EMBEDDING_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr error
	}{
		{name: "local", cfg: Config{Provider: "local", CacheSize: 10}, want: ProviderLocal},
		{name: "ollama", cfg: Config{Provider: "ollama", Host: "http://ollama:11434"}, want: ProviderOllama},
		{name: "openai compatible", cfg: Config{Provider: "openai", Host: "http://localhost:8080/v1"}, want: ProviderOpenAI},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown", cfg: Config{Provider: "jina"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, emb.Provider())
		})
	}
}
