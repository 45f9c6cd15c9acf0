// Package evaluator scores the retrieval pipeline against a labeled query set
// with hit@k.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ragctx/internal/observe"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/pkg/types"
)

// DefaultKs are the cutoffs reported when none are requested
var DefaultKs = []int{1, 3, 5, 8}

// Pipeline runs one query; *searcher.Searcher implements it
type Pipeline interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
}

// Evaluator drives a pipeline over evaluation cases
type Evaluator struct {
	pipeline Pipeline
	sink     observe.Sink

	// DefaultCollection is used for cases that do not name one
	DefaultCollection string
	// Parallelism > 1 evaluates cases concurrently; results stay in case order
	Parallelism int
}

// New creates an evaluator
func New(pipeline Pipeline, sink observe.Sink) *Evaluator {
	return &Evaluator{pipeline: pipeline, sink: observe.OrNop(sink)}
}

// KStat is the hit count for one cutoff
type KStat struct {
	K       int     `json:"k"`
	Hits    int     `json:"hits"`
	Total   int     `json:"total"`
	HitRate float64 `json:"hitRate"`
}

// CaseResult is the outcome of one case
type CaseResult struct {
	ID         string       `json:"id"`
	Query      string       `json:"q"`
	Collection string       `json:"collection"`
	Intent     types.Intent `json:"intent,omitempty"`
	Sources    []string     `json:"sources"`
	FirstHit   int          `json:"firstHit"` // 1-based rank, 0 if no hit
	Skipped    bool         `json:"skipped,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// HitAt reports whether the case hit within the top k
func (c CaseResult) HitAt(k int) bool {
	return c.FirstHit > 0 && c.FirstHit <= k
}

// Report is the result of an evaluation run
type Report struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Stats     []KStat       `json:"stats"`
	Cases     []CaseResult  `json:"cases"`
}

// HitRate returns the hit rate for k, or 0 if k was not evaluated
func (r *Report) HitRate(k int) float64 {
	for _, s := range r.Stats {
		if s.K == k {
			return s.HitRate
		}
	}
	return 0
}

// Evaluate runs every case and aggregates hit@k for each k. A case whose
// embedding or storage call fails is counted in Total and Skipped with its
// error recorded; it never aborts the run. Each case uses its own state.
func (e *Evaluator) Evaluate(ctx context.Context, cases []types.EvalCase, ks []int) (*Report, error) {
	ks, err := normalizeKs(ks)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Total:     len(cases),
		Cases:     make([]CaseResult, len(cases)),
	}

	if e.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.Parallelism)
		for i := range cases {
			g.Go(func() error {
				report.Cases[i] = e.runCase(gctx, cases[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range cases {
			report.Cases[i] = e.runCase(ctx, cases[i])
		}
	}

	for _, k := range ks {
		stat := KStat{K: k, Total: report.Total}
		for _, c := range report.Cases {
			if c.HitAt(k) {
				stat.Hits++
			}
		}
		if stat.Total > 0 {
			stat.HitRate = float64(stat.Hits) / float64(stat.Total)
		}
		report.Stats = append(report.Stats, stat)
	}
	for _, c := range report.Cases {
		if c.Skipped {
			report.Skipped++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	e.sink.Emit(ctx, observe.Event{Name: "eval.complete", Attrs: map[string]any{
		"run_id":  report.RunID,
		"total":   report.Total,
		"skipped": report.Skipped,
	}})
	return report, nil
}

func (e *Evaluator) runCase(ctx context.Context, c types.EvalCase) CaseResult {
	result := CaseResult{
		ID:         c.ID,
		Query:      c.Query,
		Collection: c.Collection,
		Sources:    []string{},
	}
	if result.Collection == "" {
		result.Collection = e.DefaultCollection
	}
	if result.Collection == "" {
		result.Skipped = true
		result.Error = "no collection"
		return result
	}

	resp, err := e.pipeline.Search(ctx, searcher.Request{Query: c.Query, Collection: result.Collection})
	if err != nil {
		result.Skipped = true
		result.Error = err.Error()
		e.sink.Emit(ctx, observe.Event{Name: "eval.case_failed", Attrs: map[string]any{
			"id":    c.ID,
			"error": err.Error(),
		}})
		return result
	}

	result.Intent = resp.Plan.Intent
	result.Sources = resp.Sources()
	result.FirstHit = FirstHit(result.Sources, c.MustContainSources)
	return result
}

// normalizeKs sorts and deduplicates the cutoffs; it rejects non-positive values
func normalizeKs(ks []int) ([]int, error) {
	if len(ks) == 0 {
		ks = DefaultKs
	}
	out := make([]int, 0, len(ks))
	seen := make(map[int]bool, len(ks))
	for _, k := range ks {
		if k <= 0 {
			return nil, fmt.Errorf("invalid k %d: must be positive", k)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Format writes the metric summary. With verbose set it also lists every case.
func (r *Report) Format(w io.Writer, verbose bool) error {
	ew := &errWriter{w: w}
	ew.printf("run %s: %d cases in %s\n", r.RunID, r.Total, r.Duration.Round(time.Millisecond))
	for _, s := range r.Stats {
		ew.printf("hit@%d: %d/%d (%.1f%%)\n", s.K, s.Hits, s.Total, s.HitRate*100)
	}
	ew.printf("skipped: %d\n", r.Skipped)

	if verbose {
		for _, c := range r.Cases {
			switch {
			case c.Skipped:
				ew.printf("  SKIP %s %q: %s\n", c.ID, c.Query, c.Error)
			case c.FirstHit > 0:
				ew.printf("  HIT  %s %q intent=%s rank=%d\n", c.ID, c.Query, c.Intent, c.FirstHit)
			default:
				ew.printf("  MISS %s %q intent=%s sources=%v\n", c.ID, c.Query, c.Intent, c.Sources)
			}
		}
	}
	return ew.err
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
