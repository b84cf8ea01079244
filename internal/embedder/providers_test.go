package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider(t *testing.T) {
	t.Run("orders results by index", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "test-model", body.Model)
			assert.Len(t, body.Input, 2)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"model": "test-model",
				"data": []map[string]interface{}{
					{"index": 1, "embedding": []float32{0, 1}},
					{"index": 0, "embedding": []float32{1, 0}},
				},
			})
		}))
		defer server.Close()

		provider, err := NewOpenAIProvider(server.URL, "test-key", "test-model", NewCache(10))
		require.NoError(t, err)
		defer provider.Close()

		resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
			Texts: []string{"eerste", "tweede"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
		assert.Equal(t, []float32{0, 1}, resp.Embeddings[1].Vector)
		assert.Equal(t, 2, provider.Dimension())
	})

	t.Run("cache hit avoids API call", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"index": 0, "embedding": []float32{0.5}}},
			})
		}))
		defer server.Close()

		provider, err := NewOpenAIProvider(server.URL, "", "m", NewCache(10))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "same"})
			require.NoError(t, err)
			assert.Equal(t, []float32{0.5}, emb.Vector)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries then fails", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}))
		defer server.Close()

		provider, err := NewOpenAIProvider(server.URL, "", "m", nil)
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(MaxRetries), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		tests := []struct {
			status int
			calls  int32
		}{
			{http.StatusUnauthorized, 1},
			{http.StatusBadRequest, 1},
			{http.StatusTooManyRequests, MaxRetries},
		}
		for _, tt := range tests {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				var calls int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					atomic.AddInt32(&calls, 1)
					w.WriteHeader(tt.status)
				}))
				defer server.Close()

				provider, err := NewOpenAIProvider(server.URL, "bad-key", "m", nil)
				require.NoError(t, err)

				_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
				assert.ErrorIs(t, err, ErrProviderFailed)
				assert.Equal(t, tt.calls, atomic.LoadInt32(&calls))
			})
		}
	})

	t.Run("requires key for the hosted API", func(t *testing.T) {
		_, err := NewOpenAIProvider("", "", "", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultOllamaModel, body.Model)

		rows := make([][]float64, len(body.Input))
		for i := range body.Input {
			rows[i] = []float64{float64(i), 0.25}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      body.Model,
			"embeddings": rows,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL+"/", "", nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, provider.Provider())

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i, emb := range resp.Embeddings {
		assert.Equal(t, []float32{float32(i), 0.25}, emb.Vector)
	}
	assert.Equal(t, 2, provider.Dimension())
}

func TestProviders_ConcurrentBatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if r.URL.Path == "/api/embed" {
			rows := make([][]float64, len(body.Input))
			for i := range rows {
				rows[i] = []float64{1, 0, 0}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": rows})
			return
		}
		data := make([]map[string]interface{}, len(body.Input))
		for i := range data {
			data[i] = map[string]interface{}{"index": i, "embedding": []float32{1, 0, 0}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer server.Close()

	openai, err := NewOpenAIProvider(server.URL, "", "m", nil)
	require.NoError(t, err)
	ollama, err := NewOllamaProvider(server.URL, "m", nil)
	require.NoError(t, err)

	for _, provider := range []Embedder{openai, ollama} {
		t.Run(provider.Provider(), func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
						Texts: []string{"a", "b"},
					})
					assert.NoError(t, err)
					_ = provider.Dimension()
				}()
			}
			wg.Wait()
			assert.Equal(t, 3, provider.Dimension())
		})
	}
}

func TestStatusError(t *testing.T) {
	assert.False(t, retry.IsRecoverable(statusError(http.StatusUnauthorized, "bad key")))
	assert.True(t, retry.IsRecoverable(statusError(http.StatusTooManyRequests, "slow down")))
	assert.True(t, retry.IsRecoverable(statusError(http.StatusBadGateway, "")))
	assert.Contains(t, statusError(http.StatusNotFound, "no model").Error(), "api error 404: no model")
}

func TestOllamaProvider_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "m", nil)
	require.NoError(t, err)

	_, err = provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("succeeds after transient errors", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, assert.AnError
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns last error", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			attempts++
			return 0, assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			return 0, assert.AnError
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProviderClose(t *testing.T) {
	assert.NoError(t, mustNewLocalProvider(t).Close())

	p, err := NewOllamaProvider("", "", nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func mustNewLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)
	return p
}
