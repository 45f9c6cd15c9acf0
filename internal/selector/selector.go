// Package selector turns a ranked candidate list into the final context:
// low-signal filtering, section-level dedup and per-source caps, with a
// relaxation ladder when the first pass selects nothing.
package selector

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/ragctx/pkg/types"
)

// RelaxedMinChars is the minChars ceiling used by the relaxed pass
const RelaxedMinChars = 60

// Stage identifies which pass of the ladder produced a selection
type Stage string

const (
	StagePrimary Stage = "primary"
	StageRelaxed Stage = "relaxed"
	StageRaw     Stage = "raw"
	StageEmpty   Stage = "empty"
)

// Report describes how a selection was produced
type Report struct {
	Stage      Stage
	Candidates int
	Selected   int
	Dropped    DropCounts
}

// DropCounts tallies why candidates were rejected in the pass that produced the result
type DropCounts struct {
	Short     int
	Status    int
	Duplicate int
	SourceCap int
}

// Select returns the final ordered selection for the candidates
func Select(candidates []types.ScoredItem, opts types.SelectionOptions) []types.ScoredItem {
	items, _ := SelectWithReport(candidates, opts)
	return items
}

// SelectWithReport runs the primary pass and, only if it yields nothing, the
// relaxed pass (minChars capped at RelaxedMinChars, status sections kept) and
// finally the first MaxChunks candidates with only dedup applied. The result is
// empty only when there are no candidates.
func SelectWithReport(candidates []types.ScoredItem, opts types.SelectionOptions) ([]types.ScoredItem, Report) {
	report := Report{Candidates: len(candidates)}
	if len(candidates) == 0 {
		report.Stage = StageEmpty
		return []types.ScoredItem{}, report
	}

	items, drops := selectPass(candidates, opts)
	report.Stage = StagePrimary

	if len(items) == 0 {
		relaxed := opts
		if relaxed.MinChars > RelaxedMinChars {
			relaxed.MinChars = RelaxedMinChars
		}
		relaxed.DropStatusSections = false
		items, drops = selectPass(candidates, relaxed)
		report.Stage = StageRelaxed
	}

	if len(items) == 0 {
		items, drops = rawPass(candidates, opts.MaxChunks)
		report.Stage = StageRaw
	}

	report.Selected = len(items)
	report.Dropped = drops
	return items, report
}

// selectPass is one greedy walk over the candidates in their given order
func selectPass(candidates []types.ScoredItem, opts types.SelectionOptions) ([]types.ScoredItem, DropCounts) {
	var drops DropCounts
	selected := make([]types.ScoredItem, 0, capHint(opts.MaxChunks, len(candidates)))
	seen := make(map[types.DedupKey]struct{}, len(candidates))
	perSource := make(map[string]int)

	for _, c := range candidates {
		if opts.MaxChunks > 0 && len(selected) >= opts.MaxChunks {
			break
		}

		m := c.Chunk.Metadata
		priority := types.MatchesAnyPrefix(m.SourcePath, opts.PriorityPrefixes)

		if !priority {
			if utf8.RuneCountInString(strings.TrimSpace(c.Chunk.Text)) < opts.MinChars {
				drops.Short++
				continue
			}
			if opts.DropStatusSections && strings.Contains(strings.ToLower(m.SectionPath), "status") {
				drops.Status++
				continue
			}
		}

		key := c.Chunk.Key()
		if _, dup := seen[key]; dup {
			drops.Duplicate++
			continue
		}

		if !priority && opts.MaxPerSource > 0 && perSource[m.SourcePath] >= opts.MaxPerSource {
			drops.SourceCap++
			continue
		}

		seen[key] = struct{}{}
		perSource[m.SourcePath]++
		selected = append(selected, c)
	}

	return selected, drops
}

// rawPass takes candidates in order up to maxChunks, skipping only repeated
// (sourcePath, sectionPath) keys
func rawPass(candidates []types.ScoredItem, maxChunks int) ([]types.ScoredItem, DropCounts) {
	var drops DropCounts
	selected := make([]types.ScoredItem, 0, capHint(maxChunks, len(candidates)))
	seen := make(map[types.DedupKey]struct{}, len(candidates))

	for _, c := range candidates {
		if maxChunks > 0 && len(selected) >= maxChunks {
			break
		}
		key := c.Chunk.Key()
		if _, dup := seen[key]; dup {
			drops.Duplicate++
			continue
		}
		seen[key] = struct{}{}
		selected = append(selected, c)
	}
	return selected, drops
}

func capHint(maxChunks, n int) int {
	if maxChunks > 0 && maxChunks < n {
		return maxChunks
	}
	return n
}
