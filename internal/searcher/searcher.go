package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ragctx/internal/embedder"
	"github.com/dshills/ragctx/internal/mmr"
	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/retriever"
	"github.com/dshills/ragctx/internal/router"
	"github.com/dshills/ragctx/internal/selector"
	"github.com/dshills/ragctx/pkg/types"
)

// Options are the tunable parameters of the pipeline
type Options struct {
	TargetSize    int     // Candidate pool size handed to diversification and selection
	MMR           bool    // Enable MMR re-ranking
	MMRLambda     float64 // Relevance weight in [0,1]
	MMRK          int     // Items kept by MMR; <= 0 keeps TargetSize
	MinSimilarity float64 // Floor applied before MMR
	Selection     types.SelectionOptions
}

// DefaultOptions returns the pipeline defaults
func DefaultOptions() Options {
	return Options{
		TargetSize:    24,
		MMR:           false,
		MMRLambda:     0.7,
		MinSimilarity: 0.2,
		Selection: types.SelectionOptions{
			MaxChunks:          8,
			MaxPerSource:       2,
			MaxCharsPerItem:    1200,
			MinChars:           80,
			DropStatusSections: true,
		},
	}
}

// Config holds the searcher's collaborators
type Config struct {
	Store    retriever.Store
	Embedder embedder.Embedder
	Router   *router.Router // nil uses router.Default()
	Sink     observe.Sink   // nil discards events
	Options  Options
}

// Request is one question against one collection
type Request struct {
	Query      string
	Collection string
	Options    *Options // Overrides the searcher defaults when set
}

// Response is the pipeline output
type Response struct {
	Plan       types.RoutePlan
	Candidates int
	Items      []types.ScoredItem
	Context    string
	Stage      selector.Stage
	Duration   time.Duration
}

// Sources returns the citations of the selected items in order
func (r *Response) Sources() []string {
	return selector.Sources(r.Items)
}

// Searcher runs the retrieval pipeline: embed, route and retrieve, optionally
// diversify, select and render. It keeps no per-query state and is safe for
// concurrent use.
type Searcher struct {
	embedder  embedder.Embedder
	retriever *retriever.Retriever
	sink      observe.Sink
	opts      Options
}

// NewSearcher creates a new Searcher instance
func NewSearcher(cfg Config) (*Searcher, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	var classifier retriever.Classifier = router.Default()
	if cfg.Router != nil {
		classifier = cfg.Router
	}
	sink := observe.OrNop(cfg.Sink)

	return &Searcher{
		embedder:  cfg.Embedder,
		retriever: retriever.New(cfg.Store, classifier, sink),
		sink:      sink,
		opts:      cfg.Options,
	}, nil
}

// Options returns the default options of this searcher
func (s *Searcher) Options() Options {
	return s.opts
}

// Search answers a request. An empty query or a collection without chunks
// yields an empty selection and empty context, not an error. Embedding and
// storage failures are returned.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	opts := s.opts
	if req.Options != nil {
		opts = *req.Options
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &Response{
			Plan:     router.Classify(""),
			Items:    []types.ScoredItem{},
			Stage:    selector.StageEmpty,
			Duration: time.Since(startTime),
		}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", embedder.ErrProviderFailed, len(vectors))
	}

	retrieved, err := s.retriever.Retrieve(ctx, retriever.Request{
		Collection:     req.Collection,
		Query:          query,
		Vector:         vectors[0],
		TargetSize:     opts.TargetSize,
		IncludeVectors: opts.MMR,
	})
	if err != nil {
		return nil, err
	}

	candidates := retrieved.Items
	if opts.MMR {
		k := opts.MMRK
		if k <= 0 {
			k = opts.TargetSize
		}
		candidates = mmr.Diversify(candidates, k, opts.MMRLambda, opts.MinSimilarity)
		s.sink.Emit(ctx, observe.Event{Name: "search.mmr", Attrs: map[string]any{
			"in":     len(retrieved.Items),
			"out":    len(candidates),
			"lambda": opts.MMRLambda,
		}})
	}
	candidates = types.StripVectors(candidates)

	selOpts := opts.Selection
	selOpts.PriorityPrefixes = mergePrefixes(retrieved.Plan.Prefixes, opts.Selection.PriorityPrefixes)

	items, report := selector.SelectWithReport(candidates, selOpts)

	resp := &Response{
		Plan:       retrieved.Plan,
		Candidates: len(candidates),
		Items:      items,
		Context:    selector.Render(items, selOpts.MaxCharsPerItem),
		Stage:      report.Stage,
		Duration:   time.Since(startTime),
	}

	s.sink.Emit(ctx, observe.Event{Name: "search.complete", Attrs: map[string]any{
		"collection": req.Collection,
		"intent":     string(resp.Plan.Intent),
		"candidates": resp.Candidates,
		"selected":   len(items),
		"stage":      string(report.Stage),
		"duration":   resp.Duration,
	}})

	return resp, nil
}

// mergePrefixes returns the plan prefixes followed by any extra prefixes not already present
func mergePrefixes(plan, extra []string) []string {
	out := make([]string, 0, len(plan)+len(extra))
	seen := make(map[string]struct{}, len(plan)+len(extra))
	for _, list := range [][]string{plan, extra} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
