package types

// ScoredItem is a chunk paired with its similarity to the current query.
// Vector is only populated when a downstream stage (MMR) asked for it.
type ScoredItem struct {
	Chunk      Chunk
	Similarity float64
	Vector     []float32
}

// WithoutVector returns a copy of the item with the vector dropped
func (s ScoredItem) WithoutVector() ScoredItem {
	s.Vector = nil
	return s
}

// StripVectors drops vectors from every item in place and returns the slice
func StripVectors(items []ScoredItem) []ScoredItem {
	for i := range items {
		items[i].Vector = nil
	}
	return items
}

// Intent is the coarse category a query is routed to
type Intent string

const (
	IntentTests      Intent = "tests"
	IntentMigrations Intent = "migrations"
	IntentOpenAPI    Intent = "openapi"
	IntentAuth       Intent = "auth"
	IntentDB         Intent = "db"
	IntentGeneral    Intent = "general"
)

// RoutePlan is produced once per query and consumed read-only by retrieval and selection
type RoutePlan struct {
	Intent   Intent
	Prefixes []string
}

// SelectionOptions configures the context selector.
// MaxChunks and MaxPerSource <= 0 mean unbounded; MaxCharsPerItem <= 0 disables truncation.
type SelectionOptions struct {
	MaxChunks          int
	MaxPerSource       int
	MaxCharsPerItem    int
	MinChars           int
	DropStatusSections bool
	PriorityPrefixes   []string
}

// EvalCase is one labeled query in an evaluation dataset
type EvalCase struct {
	ID                 string   `json:"id,omitempty"`
	Query              string   `json:"q"`
	Collection         string   `json:"collection"`
	MustContainSources []string `json:"mustContain"`
}
