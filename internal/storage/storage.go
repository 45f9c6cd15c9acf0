package storage

import (
	"context"

	"github.com/dshills/ragctx/pkg/types"
)

// Storage defines the interface for persisting chunks and querying them by vector similarity
type Storage interface {
	// Upsert inserts or replaces chunks in a collection, idempotent by chunk ID
	Upsert(ctx context.Context, collection string, items []UpsertItem) error

	// Search returns up to TopK items ordered by descending cosine similarity
	Search(ctx context.Context, req SearchRequest) ([]types.ScoredItem, error)

	// DeleteSource removes chunks of a source path that are not in keepIDs
	DeleteSource(ctx context.Context, collection, sourcePath string, keepIDs []string) (int, error)

	// Collection operations
	ListCollections(ctx context.Context) ([]string, error)
	ListSources(ctx context.Context, collection string) ([]string, error)
	Status(ctx context.Context, collection string) (*CollectionStatus, error)

	// Close releases the database connection
	Close() error
}

// UpsertItem pairs a chunk with its embedding vector
type UpsertItem struct {
	Chunk  types.Chunk
	Vector []float32
}

// SearchFilter narrows a search before scoring
type SearchFilter struct {
	SourceTypes []types.SourceType // Allow-list; empty allows all
	PathPrefix  string             // Normalized before matching; empty disables
}

// SearchRequest describes a similarity search
type SearchRequest struct {
	Collections    []string
	Vector         []float32
	TopK           int
	Filter         *SearchFilter
	IncludeVectors bool
}

// CollectionStatus contains statistics about a stored collection
type CollectionStatus struct {
	Collection string
	Chunks     int
	Sources    int
	Dimension  int
}
