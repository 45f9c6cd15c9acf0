// Package types provides shared type definitions for ragctx.
//
// This package defines the domain types passed between the storage, routing,
// retrieval, selection and evaluation stages.
//
// # Core Types
//
// Chunk is a unit of retrievable text. Its ID is content-addressed, so
// re-ingesting unchanged content produces the same ID and storage upserts are
// idempotent:
//
//	chunk := types.NewChunk("docs", "./apps/docs/app/adr/0001-migrations.md",
//	    types.SourceMarkdown, "Decision", 0, text)
//
// ScoredItem pairs a chunk with its cosine similarity to the current query.
// The optional Vector field is only filled when the MMR stage needs it.
//
// RoutePlan is the intent router output: a coarse intent plus the ordered
// path prefixes where answers for that intent are expected to live.
//
// # Path Normalization
//
// NormalizePath must be applied identically when writing chunks and when
// filtering by path prefix at read time, or prefix matching silently fails:
//
//	types.NormalizePath(`.\apps\api\db.go`) // "apps/api/db.go"
package types
