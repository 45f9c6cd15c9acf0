package router

import (
	"strings"
	"unicode"

	"github.com/dshills/ragctx/pkg/types"
)

// Router classifies queries into an intent and the ordered path prefixes
// where answers for that intent are expected. It holds static tables only and
// is safe for concurrent use.
type Router struct {
	keywords map[types.Intent][]string
	prefixes map[types.Intent][]string
}

var defaultRouter = New(nil)

// Default returns the router built from the built-in tables
func Default() *Router {
	return defaultRouter
}

// New creates a router using the built-in keyword table. Entries in prefixes
// replace the built-in prefix list of that intent; intents not present keep
// their defaults. Prefix lists are copied.
func New(prefixes map[types.Intent][]string) *Router {
	r := &Router{
		keywords: defaultKeywords,
		prefixes: make(map[types.Intent][]string, len(defaultPrefixes)),
	}
	for intent, list := range defaultPrefixes {
		r.prefixes[intent] = list
	}
	for intent, list := range prefixes {
		if intent == types.IntentGeneral {
			continue
		}
		r.prefixes[intent] = append([]string(nil), list...)
	}
	return r
}

// Classify returns the route plan for a query using the default tables
func Classify(query string) types.RoutePlan {
	return defaultRouter.Classify(query)
}

// Classify returns the route plan for a query. The first intent in precedence
// order (tests, migrations, openapi, auth, db) with a matching keyword wins;
// otherwise the plan is general with no prefixes.
func (r *Router) Classify(query string) types.RoutePlan {
	tokens, folded := normalize(query)

	for _, intent := range intentOrder {
		if matchesAny(r.keywords[intent], tokens, folded) {
			return types.RoutePlan{
				Intent:   intent,
				Prefixes: append([]string(nil), r.prefixes[intent]...),
			}
		}
	}
	return types.RoutePlan{Intent: types.IntentGeneral, Prefixes: []string{}}
}

// Prefixes returns the configured prefix list for an intent
func (r *Router) Prefixes(intent types.Intent) []string {
	return append([]string(nil), r.prefixes[intent]...)
}

// normalize case-folds the query and splits it on non-alphanumeric runes.
// It returns the token set and the tokens re-joined by single spaces for
// phrase matching.
func normalize(query string) (map[string]struct{}, string) {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens, " " + strings.Join(fields, " ") + " "
}

func matchesAny(keywords []string, tokens map[string]struct{}, folded string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(folded, " "+kw+" ") {
				return true
			}
			continue
		}
		if _, ok := tokens[kw]; ok {
			return true
		}
	}
	return false
}
