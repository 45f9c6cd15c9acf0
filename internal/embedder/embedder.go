package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder turns texts into fixed-dimension vectors
type Embedder interface {
	// Embed returns one vector per input text, in input order. Every vector has
	// the same dimension; a provider that returns otherwise fails the call with
	// ErrDimensionMismatch.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// DefaultCacheSize is the number of embeddings kept by NewCache(0)
const DefaultCacheSize = 10000

// Cache provides in-memory LRU caching of query and chunk embeddings keyed by
// provider, model and content hash. It caches vectors only, never similarities.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{
		cache: cache,
	}
}

// Get returns a copy of a cached vector so callers cannot mutate the cache
func (c *Cache) Get(key string) ([]float32, bool) {
	vec, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

// Set stores a copy of the vector with automatic LRU eviction
func (c *Cache) Set(key string, vec []float32) {
	c.cache.Add(key, append([]float32(nil), vec...))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateTexts checks that a batch is non-empty and holds no empty strings
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrEmptyText, i)
		}
	}

	return nil
}

// CheckDimensions verifies that there is one vector per text and that all
// vectors have the wanted dimension. want <= 0 only requires them to agree.
func CheckDimensions(vectors [][]float32, texts int, want int) error {
	if len(vectors) != texts {
		return fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), texts)
	}
	if want <= 0 && len(vectors) > 0 {
		want = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}

// Cached wraps an embedder with an LRU cache. Only texts missing from the
// cache are sent to the underlying embedder, in one call.
type Cached struct {
	Embedder
	cache *Cache
}

// NewCached wraps e with the given cache. A nil cache returns e unchanged.
func NewCached(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &Cached{Embedder: e, cache: cache}
}

// Embed implements Embedder
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := c.Embedder.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		if err := CheckDimensions(vectors, len(missing), 0); err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			out[missingIdx[j]] = vec
			c.cache.Set(c.key(missing[j]), vec)
		}
	}

	if err := CheckDimensions(out, len(texts), 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cached) key(text string) string {
	return c.Embedder.Provider() + "/" + c.Embedder.Model() + "/" + ComputeHash(text)
}
