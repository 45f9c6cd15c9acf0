package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hash-v1"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// DefaultRequestsPerSecond throttles HTTP providers
	DefaultRequestsPerSecond = 5.0
)

// HTTPConfig configures an HTTP embedding provider
type HTTPConfig struct {
	APIKey            string
	Model             string
	URL               string
	Dimension         int // Expected dimension; 0 accepts what the first response returns
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             RetryConfig
}

// HTTPProvider implements Embedder against an OpenAI-compatible /v1/embeddings
// endpoint. Jina serves the same request and response shape.
type HTTPProvider struct {
	name       string
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig

	mu        sync.Mutex
	dimension int
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultOpenAIURL
	}
	if cfg.Dimension == 0 && cfg.Model == DefaultOpenAIModel {
		cfg.Dimension = OpenAIDimension
	}
	return newHTTPProvider(ProviderOpenAI, cfg)
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultJinaModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultJinaURL
	}
	if cfg.Dimension == 0 && cfg.Model == DefaultJinaModel {
		cfg.Dimension = JinaDimension
	}
	return newHTTPProvider(ProviderJina, cfg)
}

func newHTTPProvider(name string, cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set", ErrNoProviderEnabled, name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &HTTPProvider{
		name:   name,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		url:    cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:     cfg.Retry,
		dimension: cfg.Dimension,
	}, nil
}

// Embed implements Embedder. Large inputs are split into MaxBatchSize requests.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return p.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		if err := p.checkDimension(vectors, len(batch)); err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	return out, nil
}

// checkDimension validates a batch and pins the provider dimension on first use
func (p *HTTPProvider) checkDimension(vectors [][]float32, texts int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := CheckDimensions(vectors, texts, p.dimension); err != nil {
		return err
	}
	if p.dimension == 0 && len(vectors) > 0 {
		p.dimension = len(vectors[0])
	}
	return nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: texts, Model: p.model})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		// Client errors other than throttling will not succeed on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Responses carry an index per input; order by it rather than trusting arrival order
	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// Dimension returns the configured or first observed dimension, 0 if unknown yet
func (p *HTTPProvider) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic feature-hashed bag-of-words vectors.
// It needs no network and gives lexical rather than semantic similarity,
// which is enough for offline use and tests.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local embedder. dimension <= 0 uses LocalDimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

// Embed implements Embedder
func (l *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *LocalProvider) embedOne(text string) []float32 {
	vector := make([]float32, l.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(l.dimension))
		// One hash bit picks the sign so unrelated tokens tend to cancel
		if sum&(1<<63) != 0 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
