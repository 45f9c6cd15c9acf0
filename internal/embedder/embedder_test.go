package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

// embeddingServer answers like /v1/embeddings with vectors of the given
// dimension, returned in reverse index order
func embeddingServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		resp.Model = req.Model
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPProvider_Embed(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 4, &calls)
	defer server.Close()

	p, err := NewOpenAIProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "custom", Retry: fastRetry()})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 0, p.Dimension(), "custom models learn their dimension from the first response")

	vectors, err := p.Embed(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])
	assert.Equal(t, float32(2), vectors[2][0])
	assert.Equal(t, 4, p.Dimension())
	assert.Equal(t, ProviderOpenAI, p.Provider())
	assert.Equal(t, "custom", p.Model())
}

func TestHTTPProvider_Batches(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 2, &calls)
	defer server.Close()

	p, err := NewJinaProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "m", RequestsPerSecond: 1000, Retry: fastRetry()})
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize*2+5)
	for i := range texts {
		texts[i] = "x"
	}
	vectors, err := p.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_DimensionMismatch(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 8, &calls)
	defer server.Close()

	p, err := NewOpenAIProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "m", Dimension: 4, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}],"model":"m"}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "m", RequestsPerSecond: 1000, Retry: fastRetry()})
	require.NoError(t, err)

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}}, vectors)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPProvider_NoRetryOnClientError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "m", Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"hello"})
	require.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestHTTPProvider_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(HTTPConfig{APIKey: "test-key", URL: server.URL, Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Embed(ctx, []string{"hello"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(HTTPConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
	_, err = NewJinaProvider(HTTPConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestLocalProvider(t *testing.T) {
	l := NewLocalProvider(0)
	assert.Equal(t, LocalDimension, l.Dimension())

	vectors, err := l.Embed(context.Background(), []string{
		"database migrations",
		"Database   MIGRATIONS!",
		"frontend styling",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, LocalDimension)
	}
	assert.Equal(t, vectors[0], vectors[1], "case and punctuation are ignored")
	assert.NotEqual(t, vectors[0], vectors[2])

	_, err = l.Embed(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = l.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// countingEmbedder records how many texts reach the provider
type countingEmbedder struct {
	LocalProvider
	texts int
	dims  []int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts += len(texts)
	if len(c.dims) > 0 {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, c.dims[i%len(c.dims)])
		}
		return out, nil
	}
	return c.LocalProvider.Embed(ctx, texts)
}

func TestCached(t *testing.T) {
	inner := &countingEmbedder{LocalProvider: *NewLocalProvider(8)}
	cache := NewCache(100)
	emb := NewCached(inner, cache)

	first, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	second, err := emb.Embed(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)

	assert.Equal(t, 3, inner.texts, "only unseen texts reach the provider")
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, 3, cache.Size())

	// Mutating a result must not poison the cache
	second[0][0] = 42
	again, err := emb.Embed(context.Background(), []string{"b"})
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), again[0][0])
}

func TestCached_DimensionMismatch(t *testing.T) {
	inner := &countingEmbedder{LocalProvider: *NewLocalProvider(8), dims: []int{4, 5}}
	emb := NewCached(inner, NewCache(10))

	_, err := emb.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewCached_NilCache(t *testing.T) {
	l := NewLocalProvider(4)
	assert.Same(t, l, NewCached(l, nil))
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, CheckDimensions([][]float32{{1, 2}, {3, 4}}, 2, 0))
	assert.NoError(t, CheckDimensions([][]float32{{1, 2}}, 1, 2))
	assert.ErrorIs(t, CheckDimensions([][]float32{{1, 2}, {3}}, 2, 0), ErrDimensionMismatch)
	assert.ErrorIs(t, CheckDimensions([][]float32{{1, 2}}, 1, 3), ErrDimensionMismatch)
	assert.ErrorIs(t, CheckDimensions([][]float32{{1, 2}}, 2, 0), ErrProviderFailed)
}

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	got, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 2, attempts)

	attempts = 0
	_, err = retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, errors.New("always")
	})
	assert.EqualError(t, err, "always")
	assert.Equal(t, 3, attempts)

	attempts = 0
	_, err = retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, permanent(errors.New("fatal"))
	})
	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 1, attempts)
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 5*time.Second, cfg.delay(10), "capped at MaxDelay")
}

func TestFactory(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default local", Config{}, ProviderLocal},
		{"jina key", Config{JinaKey: "j", OpenAIKey: "o"}, ProviderJina},
		{"openai key", Config{OpenAIKey: "o"}, ProviderOpenAI},
		{"explicit", Config{Provider: "LOCAL", OpenAIKey: "o"}, ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
			emb, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, emb.Provider())
		})
	}

	_, err := New(Config{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	emb, err := New(Config{CacheSize: 10})
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, emb)
}
