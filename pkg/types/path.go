package types

import "strings"

// NormalizePath converts a source path to the canonical form used on both the
// write path and the read-time prefix filter: forward slashes, no leading "./"
// or "/" segments.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			return p
		}
	}
}

// HasPathPrefix reports whether the normalized path starts with the normalized prefix.
// An empty prefix never matches.
func HasPathPrefix(path, prefix string) bool {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(NormalizePath(path), prefix)
}

// MatchesAnyPrefix reports whether path starts with any of the given prefixes
func MatchesAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}
