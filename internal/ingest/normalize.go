// Package ingest reconciles the four heterogeneous tour sources into
// the canonical landmark model: key normalization, quiz parsing,
// per-source coercion, and the loader that orders the sources.
package ingest

import (
	"unicode"
	"unicode/utf8"
)

// NormalizeKeys returns a structurally identical value in which the
// first rune of every object key is lower-cased, applied recursively
// through nested objects and arrays. Scalars and nil pass through
// untouched. The producers feeding this pipeline disagree on casing
// ("Question" vs "question"); normalizing once at the boundary lets
// every consumer read one spelling. Idempotent.
func NormalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[lowerFirst(k)] = NormalizeKeys(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeKeys(item)
		}
		return out
	default:
		return v
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	lower := unicode.ToLower(r)
	if lower == r {
		return s
	}
	return string(lower) + s[size:]
}
