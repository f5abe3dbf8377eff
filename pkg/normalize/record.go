package normalize

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// CountryField is the partition-key field every normalized record carries.
const CountryField = "unifiedCountryCode.value"

// NormalizeRecord coerces one raw API item into a uniform key/value record.
//
// Objects are shallow-copied. Strings holding a JSON object are parsed;
// anything else that is not an object is wrapped as a sentinel raw-value
// record. The partition-key field is guaranteed present afterwards: when
// the source record does not resolve a country code, the caller's country
// is injected so every row stays attributable to its partition.
func NormalizeRecord(item any, country string) map[string]any {
	var row map[string]any

	switch val := item.(type) {
	case map[string]any:
		row = maps.Clone(val)
	case string:
		if parsed, ok := decodeJSON(strings.TrimSpace(val)); ok {
			if obj, isObj := parsed.(map[string]any); isObj {
				row = obj
			}
		}
		if row == nil {
			row = map[string]any{"_raw_value": val, "_raw_type": "string"}
		}
	case []any:
		row = map[string]any{"_raw_value": displayJSON(val), "_raw_type": "array"}
	default:
		row = map[string]any{"_raw_value": val, "_raw_type": rawTypeName(val)}
	}

	// maps.Clone of a typed nil map is nil.
	if row == nil {
		row = map[string]any{}
	}

	if !hasCountry(row) {
		row[CountryField] = country
	}
	return row
}

// hasCountry reports whether the record resolves a non-empty country code,
// either under the flat dotted key or the nested object form.
func hasCountry(row map[string]any) bool {
	if truthy(row[CountryField]) {
		return true
	}
	return truthy(GetNested(row, CountryField, nil))
}

func rawTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// GetNested resolves a dot-separated path through nested objects,
// returning def when any step is missing or not an object.
func GetNested(obj map[string]any, path string, def any) any {
	var current any = obj
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return def
		}
		current, ok = m[part]
		if !ok {
			return def
		}
	}
	return current
}

// DateValue extracts a date field that may arrive as a plain value, as a
// {"$date": ...} wrapper object, under a literal "<field>.$date" key, or
// nested along the dotted path.
func DateValue(record map[string]any, field string) any {
	if direct, ok := record[field]; ok {
		if wrapper, isObj := direct.(map[string]any); isObj {
			if nested := wrapper["$date"]; truthy(nested) {
				return nested
			}
		}
		if truthy(direct) {
			return direct
		}
	}

	if dotted, ok := record[field+".$date"]; ok && truthy(dotted) {
		return dotted
	}

	if nested := GetNested(record, field+".$date", nil); truthy(nested) {
		return nested
	}

	return ""
}

// updateDateTimeCandidates lists the field spellings under which the
// upstream delivers the record update timestamp.
var updateDateTimeCandidates = []string{
	"resourceItemStatusDetails/updateDateTime",
	"resourceItemStatusDetails.updateDateTime",
}

// UpdateDateTime returns the record's update timestamp text, or "".
func UpdateDateTime(record map[string]any) string {
	candidates := []any{
		DateValue(record, updateDateTimeCandidates[0]),
		DateValue(record, updateDateTimeCandidates[1]),
		GetNested(record, "resourceItemStatusDetails.updateDateTime", nil),
		GetNested(record, "resourceItemStatusDetails.updateDateTime.$date", nil),
		record[updateDateTimeCandidates[0]],
	}

	for _, candidate := range candidates {
		if wrapper, isObj := candidate.(map[string]any); isObj {
			if nested := wrapper["$date"]; truthy(nested) {
				return scalarText(nested)
			}
			continue
		}
		if truthy(candidate) {
			return scalarText(candidate)
		}
	}
	return ""
}

// MatchesUpdatedFrom applies the client-side "updated since" filter.
// A nil threshold matches everything. A record without a parseable update
// timestamp is excluded, not included: when in doubt the row is dropped
// rather than exported with an unverifiable freshness claim.
func MatchesUpdatedFrom(record map[string]any, threshold *time.Time) bool {
	if threshold == nil {
		return true
	}
	updated, ok := ParseISOUTC(UpdateDateTime(record))
	if !ok {
		return false
	}
	return !updated.Before(*threshold)
}

// truthy mirrors the emptiness notion used across the normalizers:
// nil, empty strings and empty containers count as absent.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
