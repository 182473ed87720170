package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/geowander/citytour/internal/citytour"
)

// Candidate field names consulted in priority order, after key
// normalization has already folded spellings like "Quiz" and "Coords"
// to their lower-first forms. Each duck-typed lookup is a table, not a
// chain of fallback expressions, so the contract is visible in one
// place.
var (
	quizFieldNames  = []string{"quiz", "questions"}
	nameFieldNames  = []string{"name", "city", "title"}
	coordFieldNames = []string{"coords", "coordinates"}
	imageFieldNames = []string{"imageUrl", "image"}
	videoFieldNames = []string{"videoUrl", "video"}
	audioFieldNames = []string{"audioUrl", "audio"}
	blockFieldNames = []string{"blockNavigation", "block_navigation"}
)

// fieldValue returns the value of the first candidate key present in m.
func fieldValue(m map[string]any, names []string) (any, bool) {
	for _, n := range names {
		if v, ok := m[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// stringField returns the first candidate holding a non-blank string,
// trimmed.
func stringField(m map[string]any, names ...string) string {
	for _, n := range names {
		if s, ok := m[n].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func boolField(m map[string]any, names ...string) bool {
	for _, n := range names {
		if b, ok := m[n].(bool); ok {
			return b
		}
	}
	return false
}

// stringsField reads an array of strings, dropping blanks and
// non-string entries.
func stringsField(m map[string]any, name string) []string {
	arr, ok := m[name].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// finiteFloat converts a JSON scalar to a finite float64. Strings are
// accepted when they parse ("30.33" arrives as a string from some
// dataset producers); NaN, infinities, null, and everything else fail.
func finiteFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coordsFromArray validates the [lat, lng] array shape, exactly two
// entries, both finite. Dataset rows accept only this form; anything
// else is a per-row rejection.
func coordsFromArray(v any) (citytour.Coordinates, error) {
	var zero citytour.Coordinates
	c, ok := v.([]any)
	if !ok {
		if v == nil {
			return zero, errors.New("coordinates are missing")
		}
		return zero, fmt.Errorf("coordinates must be a two-element array, got %T", v)
	}
	if len(c) != 2 {
		return zero, fmt.Errorf("coordinates must be a two-element array, got %d elements", len(c))
	}
	lat, ok := finiteFloat(c[0])
	if !ok {
		return zero, fmt.Errorf("latitude %v is not a finite number", c[0])
	}
	lng, ok := finiteFloat(c[1])
	if !ok {
		return zero, fmt.Errorf("longitude %v is not a finite number", c[1])
	}
	return citytour.Coordinates{Lat: lat, Lng: lng}, nil
}

// coordsOf validates a coordinate value: either a two-element
// [lat, lng] array or a {lat, lng} object, both entries finite. The
// object form is the shape the overlay slot persists and the shape
// uploads may carry.
func coordsOf(v any) (citytour.Coordinates, error) {
	var zero citytour.Coordinates
	switch c := v.(type) {
	case []any:
		return coordsFromArray(c)
	case map[string]any:
		lat, ok := finiteFloat(c["lat"])
		if !ok {
			return zero, fmt.Errorf("latitude %v is not a finite number", c["lat"])
		}
		lng, ok := finiteFloat(c["lng"])
		if !ok {
			return zero, fmt.Errorf("longitude %v is not a finite number", c["lng"])
		}
		return citytour.Coordinates{Lat: lat, Lng: lng}, nil
	case nil:
		return zero, errors.New("coordinates are missing")
	default:
		return zero, fmt.Errorf("coordinates have unsupported shape %T", v)
	}
}

// numericID extracts a landmark ID when the value is a JSON number.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// iconTypeOf clamps a raw icon value to the enum, falling back to
// monument for anything unknown.
func iconTypeOf(v any) citytour.IconType {
	if s, ok := v.(string); ok {
		if t := citytour.IconType(s); t.Valid() {
			return t
		}
	}
	return citytour.IconMonument
}
