// Package retriever implements routed retrieval: searching the intent's
// priority prefixes first and backfilling with an unfiltered search.
package retriever

import (
	"context"
	"fmt"

	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/router"
	"github.com/dshills/ragctx/internal/storage"
	"github.com/dshills/ragctx/pkg/types"
)

// MinFetchWidth is the smallest number of rows requested per store query
const MinFetchWidth = 32

// Store is the subset of storage.Storage the retriever needs
type Store interface {
	Search(ctx context.Context, req storage.SearchRequest) ([]types.ScoredItem, error)
}

// Classifier produces a route plan for a query
type Classifier interface {
	Classify(query string) types.RoutePlan
}

// Request describes one retrieval
type Request struct {
	Collection     string
	Query          string
	Vector         []float32
	TargetSize     int
	IncludeVectors bool
}

// Result is the route plan and the accumulated candidates
type Result struct {
	Plan  types.RoutePlan
	Items []types.ScoredItem
}

// Retriever runs routed retrieval against a store
type Retriever struct {
	store  Store
	router Classifier
	sink   observe.Sink
}

// New creates a retriever. A nil classifier uses the default router; a nil
// sink discards events.
func New(store Store, classifier Classifier, sink observe.Sink) *Retriever {
	if classifier == nil {
		classifier = router.Default()
	}
	return &Retriever{
		store:  store,
		router: classifier,
		sink:   observe.OrNop(sink),
	}
}

// Retrieve classifies the query, then queries each plan prefix in order and
// appends unseen chunks until TargetSize is reached. If still short it runs
// one unfiltered search over the collection. Routed candidates therefore come
// first without ever excluding the generic results.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	plan := r.router.Classify(req.Query)
	result := &Result{Plan: plan, Items: []types.ScoredItem{}}
	if req.TargetSize <= 0 {
		return result, nil
	}

	width := req.TargetSize
	if width < MinFetchWidth {
		width = MinFetchWidth
	}

	acc := newAccumulator(req.TargetSize)

	for _, prefix := range plan.Prefixes {
		if acc.full() {
			break
		}
		items, err := r.search(ctx, req, width, &storage.SearchFilter{PathPrefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("routed search for prefix %q failed: %w", prefix, err)
		}
		added := acc.add(items)
		r.sink.Emit(ctx, observe.Event{Name: "retrieve.prefix", Attrs: map[string]any{
			"intent":   string(plan.Intent),
			"prefix":   prefix,
			"fetched":  len(items),
			"added":    added,
			"total":    len(acc.items),
			"target":   req.TargetSize,
			"complete": acc.full(),
		}})
	}

	if !acc.full() {
		items, err := r.search(ctx, req, width, nil)
		if err != nil {
			return nil, fmt.Errorf("backfill search failed: %w", err)
		}
		added := acc.add(items)
		r.sink.Emit(ctx, observe.Event{Name: "retrieve.backfill", Attrs: map[string]any{
			"intent":  string(plan.Intent),
			"fetched": len(items),
			"added":   added,
			"total":   len(acc.items),
			"target":  req.TargetSize,
		}})
	}

	result.Items = acc.items
	return result, nil
}

func (r *Retriever) search(ctx context.Context, req Request, width int, filter *storage.SearchFilter) ([]types.ScoredItem, error) {
	return r.store.Search(ctx, storage.SearchRequest{
		Collections:    []string{req.Collection},
		Vector:         req.Vector,
		TopK:           width,
		Filter:         filter,
		IncludeVectors: req.IncludeVectors,
	})
}

// accumulator collects items in arrival order, deduplicated by chunk ID and
// bounded by a target size. A fresh accumulator is used per retrieval.
type accumulator struct {
	target int
	seen   map[string]struct{}
	items  []types.ScoredItem
}

func newAccumulator(target int) *accumulator {
	return &accumulator{
		target: target,
		seen:   make(map[string]struct{}, target),
		items:  make([]types.ScoredItem, 0, target),
	}
}

func (a *accumulator) full() bool {
	return len(a.items) >= a.target
}

// add appends unseen items until the target is reached and returns how many were added
func (a *accumulator) add(items []types.ScoredItem) int {
	added := 0
	for _, it := range items {
		if a.full() {
			break
		}
		if _, ok := a.seen[it.Chunk.ID]; ok {
			continue
		}
		a.seen[it.Chunk.ID] = struct{}{}
		a.items = append(a.items, it)
		added++
	}
	return added
}
