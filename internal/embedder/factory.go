package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider          string // jina, openai, local; empty auto-detects from the keys
	OpenAIKey         string
	JinaKey           string
	Model             string
	URL               string
	Dimension         int
	CacheSize         int // <= 0 disables the cache
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New creates an embedder from configuration, wrapped in an LRU cache when
// CacheSize is positive.
func New(cfg Config) (Embedder, error) {
	base, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return NewCached(base, NewCache(cfg.CacheSize)), nil
	}
	return base, nil
}

func newProvider(cfg Config) (Embedder, error) {
	httpCfg := HTTPConfig{
		Model:             cfg.Model,
		URL:               cfg.URL,
		Dimension:         cfg.Dimension,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}

	switch DetectProvider(cfg) {
	case ProviderJina:
		httpCfg.APIKey = cfg.JinaKey
		return NewJinaProvider(httpCfg)
	case ProviderOpenAI:
		httpCfg.APIKey = cfg.OpenAIKey
		return NewOpenAIProvider(httpCfg)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use.
// Priority:
// 1. Explicit Provider (jina, openai, local)
// 2. Available API keys: Jina, then OpenAI
// 3. Local if no API keys are set
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.JinaKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
