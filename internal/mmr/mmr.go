// Package mmr implements Maximal Marginal Relevance re-ranking.
package mmr

import (
	"math"

	"github.com/dshills/ragctx/internal/storage"
	"github.com/dshills/ragctx/pkg/types"
)

// FilterMinSimilarity returns the items whose similarity is at least min, preserving order
func FilterMinSimilarity(items []types.ScoredItem, min float64) []types.ScoredItem {
	out := make([]types.ScoredItem, 0, len(items))
	for _, it := range items {
		if it.Similarity >= min {
			out = append(out, it)
		}
	}
	return out
}

// Rerank greedily selects up to k candidates, each time taking the item that
// maximizes
//
//	lambda*relevance - (1-lambda)*maxRedundancy
//
// where relevance is the item's query similarity and maxRedundancy is its
// highest cosine similarity to an already selected vector. Items without a
// vector carry no redundancy. Ties go to the earlier candidate. lambda is
// clamped to [0, 1]. The input slice is not modified.
func Rerank(candidates []types.ScoredItem, k int, lambda float64) []types.ScoredItem {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return []types.ScoredItem{}
	}
	lambda = math.Max(0, math.Min(1, lambda))

	selected := make([]types.ScoredItem, 0, k)
	used := make([]bool, len(candidates))
	// redundancy[i] is the max similarity of candidate i to any selected vector,
	// valid only once compared[i] is set
	redundancy := make([]float64, len(candidates))
	compared := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			score := lambda*c.Similarity - (1-lambda)*redundancy[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		chosen := candidates[best]
		selected = append(selected, chosen)

		if len(chosen.Vector) == 0 {
			continue
		}
		for i, c := range candidates {
			if used[i] || len(c.Vector) == 0 {
				continue
			}
			sim := storage.CosineSimilarity(c.Vector, chosen.Vector)
			if !compared[i] || sim > redundancy[i] {
				redundancy[i] = sim
				compared[i] = true
			}
		}
	}

	return selected
}

// Diversify applies the similarity floor and MMR. When no candidate clears
// the floor it falls back to the first k of the unfiltered relevance-ranked
// list so the caller never ends up with an empty pool it could have filled.
func Diversify(candidates []types.ScoredItem, k int, lambda, minSimilarity float64) []types.ScoredItem {
	pool := FilterMinSimilarity(candidates, minSimilarity)
	if len(pool) == 0 {
		if k > len(candidates) {
			k = len(candidates)
		}
		if k < 0 {
			k = 0
		}
		return append([]types.ScoredItem{}, candidates[:k]...)
	}
	return Rerank(pool, k, lambda)
}
