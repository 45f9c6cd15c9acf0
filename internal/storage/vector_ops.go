package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/ragctx/pkg/types"
)

// searchVector scans every row that passes the filters, scores it by cosine
// similarity in Go and returns the top K. Rows are scanned in id order and
// sorted stably, so equal scores keep insertion order.
func searchVector(ctx context.Context, q querier, req SearchRequest) ([]types.ScoredItem, error) {
	if len(req.Collections) == 0 || req.TopK <= 0 {
		return []types.ScoredItem{}, nil
	}

	query := `
		SELECT chunk_id, collection, source_path, source_type, section_path,
		       sequence, content_hash, text, vector
		FROM chunks
		WHERE collection IN (` + placeholders(len(req.Collections)) + `)
	`
	args := make([]interface{}, 0, len(req.Collections)+4)
	for _, c := range req.Collections {
		args = append(args, c)
	}

	query, args = applySearchFilter(query, args, req.Filter)
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, req.Vector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	return buildResults(candidates, req.TopK, req.IncludeVectors), nil
}

// applySearchFilter adds WHERE clause filters for source types and path prefix
func applySearchFilter(query string, args []interface{}, filter *SearchFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	if len(filter.SourceTypes) > 0 {
		query += " AND source_type IN (" + placeholders(len(filter.SourceTypes)) + ")"
		for _, st := range filter.SourceTypes {
			args = append(args, string(st))
		}
	}

	if prefix := types.NormalizePath(filter.PathPrefix); prefix != "" {
		// substr avoids LIKE wildcard escaping for paths containing % or _
		query += " AND substr(source_path, 1, length(?)) = ?"
		args = append(args, prefix, prefix)
	}

	return query, args
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var (
			c          candidate
			sourceType string
			vectorBlob []byte
		)
		m := &c.chunk.Metadata
		if err := rows.Scan(&c.chunk.ID, &m.Collection, &m.SourcePath, &sourceType,
			&m.SectionPath, &m.Sequence, &m.ContentHash, &c.chunk.Text, &vectorBlob); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		m.SourceType = types.SourceType(sourceType)

		c.vector = deserializeVector(vectorBlob)
		if len(c.vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		c.score = cosineSimilarity(queryVector, c.vector)
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// buildResults creates the ScoredItem slice from sorted candidates
func buildResults(candidates []candidate, limit int, includeVectors bool) []types.ScoredItem {
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]types.ScoredItem, limit)
	for i := 0; i < limit; i++ {
		results[i] = types.ScoredItem{
			Chunk:      candidates[i].chunk,
			Similarity: candidates[i].score,
		}
		if includeVectors {
			results[i].Vector = candidates[i].vector
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or when either vector has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding drift so callers can rely on [-1, 1]
	return math.Max(-1, math.Min(1, sim))
}

// candidate represents a scanned row with its similarity score
type candidate struct {
	chunk  types.Chunk
	vector []float32
	score  float64
}

// sortCandidates sorts candidates by score in descending order, keeping scan order for ties
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// placeholders returns n comma-separated SQL placeholders
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CosineSimilarity is the similarity Search ranks by, exported for re-ranking
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
