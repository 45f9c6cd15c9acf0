// Package router implements deterministic keyword-based intent routing.
//
// A query is case-folded and tokenized, then tested against fixed keyword
// sets. When several intents match, precedence is a hard contract:
//
//	tests > migrations > openapi > auth > db > general
//
// Each intent maps to an ordered list of path prefixes that the retriever
// searches first. The general intent has no prefixes. The keyword table is
// static; prefix lists may be replaced at deployment time through the
// [router.prefixes] config section.
package router
