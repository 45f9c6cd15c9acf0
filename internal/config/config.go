// Package config loads ragctx configuration from a TOML file, environment
// variables and built-in defaults, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/generator"
	"github.com/dshills/ragctx/internal/indexer"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/pkg/types"
)

// Environment variables that override file values
const (
	EnvDBPath            = "RAGCTX_DB_PATH"
	EnvEmbeddingProvider = "RAGCTX_EMBEDDING_PROVIDER"
	EnvChatModel         = "RAGCTX_CHAT_MODEL"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvJinaKey           = "JINA_API_KEY"
)

// DefaultDBPath is the database location used when none is configured
const DefaultDBPath = "~/.ragctx/ragctx.db"

// Config is the complete ragctx configuration
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Embedder  EmbedderConfig  `toml:"embedder"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Selection SelectionConfig `toml:"selection"`
	Router    RouterConfig    `toml:"router"`
	Indexer   IndexerConfig   `toml:"indexer"`
	Generator GeneratorConfig `toml:"generator"`

	// API keys come from the environment only
	OpenAIKey string `toml:"-"`
	JinaKey   string `toml:"-"`
}

type StorageConfig struct {
	Path              string `toml:"path"`
	DefaultCollection string `toml:"default_collection"`
}

type EmbedderConfig struct {
	Provider          string  `toml:"provider"` // jina, openai, local; empty auto-detects
	Model             string  `toml:"model"`
	URL               string  `toml:"url"`
	Dimension         int     `toml:"dimension"`
	CacheSize         int     `toml:"cache_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

type RetrievalConfig struct {
	TargetSize    int     `toml:"target_size"`
	MMR           bool    `toml:"mmr"`
	MMRLambda     float64 `toml:"mmr_lambda"`
	MMRK          int     `toml:"mmr_k"`
	MinSimilarity float64 `toml:"min_similarity"`
}

type SelectionConfig struct {
	MaxChunks          int  `toml:"max_chunks"`
	MaxPerSource       int  `toml:"max_per_source"`
	MaxCharsPerItem    int  `toml:"max_chars_per_item"`
	MinChars           int  `toml:"min_chars"`
	DropStatusSections bool `toml:"drop_status_sections"`
}

// RouterConfig overrides the built-in prefix table per intent name
type RouterConfig struct {
	Prefixes map[string][]string `toml:"prefixes"`
}

type IndexerConfig struct {
	Include     []string `toml:"include"`
	Exclude     []string `toml:"exclude"`
	Workers     int      `toml:"workers"`
	BatchSize   int      `toml:"batch_size"`
	MaxFileSize int64    `toml:"max_file_size"`
	MaxChars    int      `toml:"max_chars"`
}

type GeneratorConfig struct {
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	MaxTokens         int     `toml:"max_tokens"`
	Temperature       float64 `toml:"temperature"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Default returns the built-in configuration
func Default() *Config {
	opts := searcher.DefaultOptions()
	return &Config{
		Storage: StorageConfig{Path: DefaultDBPath},
		Embedder: EmbedderConfig{
			CacheSize:         embedder.DefaultCacheSize,
			RequestsPerSecond: embedder.DefaultRequestsPerSecond,
			TimeoutSeconds:    30,
		},
		Retrieval: RetrievalConfig{
			TargetSize:    opts.TargetSize,
			MMR:           opts.MMR,
			MMRLambda:     opts.MMRLambda,
			MMRK:          opts.MMRK,
			MinSimilarity: opts.MinSimilarity,
		},
		Selection: SelectionConfig{
			MaxChunks:          opts.Selection.MaxChunks,
			MaxPerSource:       opts.Selection.MaxPerSource,
			MaxCharsPerItem:    opts.Selection.MaxCharsPerItem,
			MinChars:           opts.Selection.MinChars,
			DropStatusSections: opts.Selection.DropStatusSections,
		},
		Indexer: IndexerConfig{
			BatchSize:   indexer.DefaultBatchSize,
			MaxFileSize: indexer.DefaultMaxFileSize,
		},
		Generator: GeneratorConfig{
			Model:             generator.DefaultModel,
			BaseURL:           generator.DefaultBaseURL,
			MaxTokens:         generator.DefaultMaxTokens,
			RequestsPerSecond: generator.DefaultRequestsPerSecond,
			TimeoutSeconds:    int(generator.DefaultTimeout / time.Second),
		},
	}
}

// DefaultPath returns ~/.ragctx/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ragctx", "config.toml"), nil
}

// Load reads configuration. An empty path reads DefaultPath if it exists and
// falls back to defaults otherwise; an explicit path must exist. Environment
// overrides are applied last and the result is validated.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// No config file; defaults apply
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	if v := getenv(EnvEmbeddingProvider); v != "" {
		c.Embedder.Provider = v
	}
	if v := getenv(EnvChatModel); v != "" {
		c.Generator.Model = v
	}
	c.OpenAIKey = getenv(EnvOpenAIKey)
	c.JinaKey = getenv(EnvJinaKey)
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	switch strings.ToLower(c.Embedder.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("embedder.provider %q is not one of jina, openai, local", c.Embedder.Provider))
	}
	if c.Embedder.Dimension < 0 {
		errs = append(errs, errors.New("embedder.dimension must not be negative"))
	}

	if c.Retrieval.TargetSize <= 0 {
		errs = append(errs, errors.New("retrieval.target_size must be positive"))
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		errs = append(errs, errors.New("retrieval.mmr_lambda must be within [0, 1]"))
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		errs = append(errs, errors.New("retrieval.min_similarity must be within [-1, 1]"))
	}

	if c.Selection.MinChars < 0 {
		errs = append(errs, errors.New("selection.min_chars must not be negative"))
	}

	for name := range c.Router.Prefixes {
		if !isRoutedIntent(types.Intent(name)) {
			errs = append(errs, fmt.Errorf("router.prefixes: unknown intent %q", name))
		}
	}

	if err := indexer.ValidatePatterns(c.Indexer.Include, c.Indexer.Exclude); err != nil {
		errs = append(errs, fmt.Errorf("indexer: %w", err))
	}

	return errors.Join(errs...)
}

func isRoutedIntent(intent types.Intent) bool {
	switch intent {
	case types.IntentTests, types.IntentMigrations, types.IntentOpenAPI, types.IntentAuth, types.IntentDB:
		return true
	}
	return false
}

// DBPath returns the storage path with a leading ~ expanded
func (c *Config) DBPath() (string, error) {
	return ExpandHome(c.Storage.Path)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// SearchOptions converts the retrieval and selection sections
func (c *Config) SearchOptions() searcher.Options {
	return searcher.Options{
		TargetSize:    c.Retrieval.TargetSize,
		MMR:           c.Retrieval.MMR,
		MMRLambda:     c.Retrieval.MMRLambda,
		MMRK:          c.Retrieval.MMRK,
		MinSimilarity: c.Retrieval.MinSimilarity,
		Selection: types.SelectionOptions{
			MaxChunks:          c.Selection.MaxChunks,
			MaxPerSource:       c.Selection.MaxPerSource,
			MaxCharsPerItem:    c.Selection.MaxCharsPerItem,
			MinChars:           c.Selection.MinChars,
			DropStatusSections: c.Selection.DropStatusSections,
		},
	}
}

// EmbedderConfig converts the embedder section plus API keys
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:          c.Embedder.Provider,
		OpenAIKey:         c.OpenAIKey,
		JinaKey:           c.JinaKey,
		Model:             c.Embedder.Model,
		URL:               c.Embedder.URL,
		Dimension:         c.Embedder.Dimension,
		CacheSize:         c.Embedder.CacheSize,
		RequestsPerSecond: c.Embedder.RequestsPerSecond,
		Timeout:           time.Duration(c.Embedder.TimeoutSeconds) * time.Second,
	}
}

// RouterPrefixes converts the router overrides
func (c *Config) RouterPrefixes() map[types.Intent][]string {
	if len(c.Router.Prefixes) == 0 {
		return nil
	}
	out := make(map[types.Intent][]string, len(c.Router.Prefixes))
	for name, prefixes := range c.Router.Prefixes {
		out[types.Intent(name)] = prefixes
	}
	return out
}

// IndexerConfig converts the indexer section for one collection
func (c *Config) IndexerConfig(collection string) indexer.Config {
	return indexer.Config{
		Collection:  collection,
		Include:     c.Indexer.Include,
		Exclude:     c.Indexer.Exclude,
		Workers:     c.Indexer.Workers,
		BatchSize:   c.Indexer.BatchSize,
		MaxFileSize: c.Indexer.MaxFileSize,
		MaxChars:    c.Indexer.MaxChars,
	}
}

// GeneratorConfig converts the generator section; the key is OPENAI_API_KEY
func (c *Config) GeneratorConfig() generator.Config {
	return generator.Config{
		APIKey:            c.OpenAIKey,
		BaseURL:           c.Generator.BaseURL,
		Model:             c.Generator.Model,
		MaxTokens:         c.Generator.MaxTokens,
		Temperature:       c.Generator.Temperature,
		RequestsPerSecond: c.Generator.RequestsPerSecond,
		Timeout:           time.Duration(c.Generator.TimeoutSeconds) * time.Second,
	}
}
