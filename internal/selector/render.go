package selector

import (
	"fmt"
	"strings"

	"github.com/dshills/ragctx/pkg/types"
)

// ContinuationMarker is appended to truncated item text
const ContinuationMarker = " …"

// Render formats the selection as a citation-numbered context block. Each
// item starts with a header line
//
//	[n] path#section (similarity 0.000)
//
// followed by its text, truncated to maxCharsPerItem runes when positive.
// Items are separated by a blank line. An empty selection renders as "".
func Render(items []types.ScoredItem, maxCharsPerItem int) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (similarity %.3f)\n", i+1, it.Chunk.Citation(), it.Similarity)
		b.WriteString(Truncate(strings.TrimSpace(it.Chunk.Text), maxCharsPerItem))
	}
	return b.String()
}

// Truncate cuts s to at most max runes and appends ContinuationMarker when
// anything was removed. The cut always falls on a rune boundary. max <= 0
// disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimRight(s[:i], " \t\r\n") + ContinuationMarker
		}
		n++
	}
	return s
}

// Sources returns the citation of every item in order
func Sources(items []types.ScoredItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Chunk.Citation()
	}
	return out
}
