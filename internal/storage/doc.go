// Package storage provides SQLite-based persistence for chunks and their
// embedding vectors, and the similarity search over them.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migration versions (semver)
//   - chunks: one row per chunk ID holding text, metadata and a float32 vector blob
//
// Collection membership is an equality filter on the chunks table; there are no joins.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.ragctx/ragctx.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Upsert(ctx, "docs", []storage.UpsertItem{{Chunk: chunk, Vector: vec}})
//
//	results, err := store.Search(ctx, storage.SearchRequest{
//	    Collections: []string{"docs"},
//	    Vector:      queryVec,
//	    TopK:        32,
//	    Filter:      &storage.SearchFilter{PathPrefix: "apps/docs/app/adr/"},
//	})
//
// # Upserts
//
// Upsert is idempotent by chunk ID. Each batch runs in a single transaction and
// every row is written by one INSERT ... ON CONFLICT statement, so text,
// metadata and vector are always replaced together. All vectors in a
// collection must share one dimension.
//
// # Search and Tie-Break
//
// Source type and path prefix filters are applied in SQL before scoring.
// Prefixes are normalized with types.NormalizePath, the same function used on
// the write path. Cosine similarity is computed in Go for every build so that
// both drivers rank identically; a zero-norm vector scores 0.
//
// Equal similarities are broken by insertion order: rows are scanned in
// ascending row id and sorted stably. The row id of a chunk does not change
// when it is re-upserted.
//
// # Build Tags
//
// Pure Go build (default):
//
//	CGO_ENABLED=0 go build ./...
//
// CGO build using github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "cgosqlite" ./...
package storage
