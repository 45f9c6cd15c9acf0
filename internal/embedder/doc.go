// Package embedder turns text into fixed-dimension vectors.
//
// Providers:
//   - openai: OpenAI /v1/embeddings (text-embedding-3-small, 1536 dimensions)
//   - jina: Jina AI /v1/embeddings (jina-embeddings-v3, 1024 dimensions)
//   - local: offline feature-hashed bag of words (384 dimensions)
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai", OpenAIKey: key, CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vectors, err := emb.Embed(ctx, []string{"How are migrations handled?"})
//
// Embed returns exactly one vector per input in input order. A response with
// a missing vector or a differing dimension fails the whole call with
// ErrDimensionMismatch or ErrProviderFailed; no partial results are returned.
//
// # Provider Selection
//
// An explicit provider wins. Otherwise a Jina key selects Jina, an OpenAI key
// selects OpenAI, and with neither the local provider is used.
//
// # Caching
//
// New wraps the provider in an LRU cache when CacheSize is positive. Keys
// combine provider, model and the SHA-256 of the text, so switching models
// never serves stale vectors. Only vectors are cached.
//
// # Error Handling
//
// HTTP providers are rate limited with golang.org/x/time/rate and retry
// transient failures with exponential backoff. Client errors other than 429
// are not retried.
//
//	vectors, err := emb.Embed(ctx, texts)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // upstream unavailable
//	}
package embedder
