// Package normalize converts raw OData payload values and records into the
// uniform shapes the export pipeline works with. Every function in this
// package is total: arbitrary upstream input produces a result, never an
// error. Malformed data degrades to sentinel raw-value records so anomalies
// stay visible in the output.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxFlattenDepth bounds recursion over adversarially nested input.
// Values nested deeper collapse to truncatedMarker instead of recursing.
const maxFlattenDepth = 32

const truncatedMarker = "<truncated>"

// emptySentinels are scalar spellings treated as "no value".
var emptySentinels = map[string]struct{}{
	"None": {},
	"nan":  {},
	"NaN":  {},
	"null": {},
	"[]":   {},
	"{}":   {},
}

// Flatten renders an arbitrary JSON-like value as a single display string.
//
// Sequences flatten element-wise, drop empty results and join with " | ".
// Mappings emit "key: value" pairs (empty values dropped entirely) joined
// with "; ", keys sorted for stable output. Scalars are stringified and
// trimmed; the sentinel spellings None/nan/NaN/null/[]/{} become "".
func Flatten(v any) string {
	return flatten(v, 0)
}

func flatten(v any, depth int) string {
	if depth >= maxFlattenDepth {
		return truncatedMarker
	}

	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return ""
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if flat := flatten(item, depth+1); flat != "" {
				parts = append(parts, flat)
			}
		}
		return strings.Join(parts, " | ")

	case map[string]any:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			if flat := flatten(val[key], depth+1); flat != "" {
				parts = append(parts, key+": "+flat)
			}
		}
		return strings.Join(parts, "; ")

	default:
		return scalarText(v)
	}
}

// scalarText stringifies a scalar, trims it and maps sentinels to "".
func scalarText(v any) string {
	if v == nil {
		return ""
	}

	var text string
	switch val := v.(type) {
	case string:
		text = strings.TrimSpace(val)
	case json.Number:
		text = val.String()
	case float64:
		text = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		text = strconv.FormatBool(val)
	case int:
		text = strconv.Itoa(val)
	case int64:
		text = strconv.FormatInt(val, 10)
	default:
		text = strings.TrimSpace(fmt.Sprintf("%v", val))
	}

	if _, empty := emptySentinels[text]; empty {
		return ""
	}
	return text
}

// ParseStructured recovers structure from values that arrive as JSON
// embedded in strings. Structured values pass through unchanged. A string
// whose trimmed form is bracketed like a JSON array/object is parsed
// strictly first, then with a permissive single-quote fallback; if both
// fail the original string is returned. Sentinel spellings become "".
func ParseStructured(v any) any {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case []any, map[string]any:
		return v
	case string:
		text := strings.TrimSpace(val)
		if text == "" {
			return ""
		}
		if _, empty := emptySentinels[text]; empty {
			return ""
		}

		bracketed := (strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")) ||
			(strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}"))
		if !bracketed {
			return val
		}

		if parsed, ok := decodeJSON(text); ok {
			return parsed
		}
		// Upstream sometimes serializes with single quotes. Only worth
		// attempting when no regular quotes are present.
		if !strings.Contains(text, `"`) {
			if parsed, ok := decodeJSON(strings.ReplaceAll(text, "'", `"`)); ok {
				return parsed
			}
		}
		return val
	default:
		return v
	}
}

// decodeJSON parses text preserving number formatting via json.Number.
func decodeJSON(text string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// displayJSON renders a value as JSON with a space after separators,
// matching the formatting of earlier exports so raw-value columns stay
// stable across tool versions.
func displayJSON(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = displayJSON(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = quoteJSON(key) + ": " + displayJSON(val[key])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case string:
		return quoteJSON(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return quoteJSON(fmt.Sprintf("%v", val))
	}
}

// quoteJSON quotes a string without HTML escaping, so <, > and & survive
// verbatim the way earlier exports wrote them.
func quoteJSON(s string) string {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
