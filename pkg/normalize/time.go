package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeUTCTimestamp canonicalizes a user-supplied date/time into the
// ISO form the OData filter expects (e.g. 2024-06-24T00:00:00.00Z).
// Accepted inputs: YYYY, YYYY-MM, DD.MM.YYYY, YYYY-MM-DD and full ISO-8601.
func NormalizeUTCTimestamp(value string) (string, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", fmt.Errorf("empty date/time")
	}

	if isDigits(text) && len(text) == 4 {
		text += "-01-01T00:00:00.00Z"
	} else if len(text) == 7 && text[4] == '-' && isDigits(text[:4]) && isDigits(text[5:]) {
		month, _ := strconv.Atoi(text[5:])
		if month < 1 || month > 12 {
			return "", fmt.Errorf("invalid month in %q", value)
		}
		text += "-01T00:00:00.00Z"
	}

	if len(text) == 10 && text[2] == '.' && text[5] == '.' {
		parsed, err := time.Parse("02.01.2006", text)
		if err != nil {
			return "", fmt.Errorf("invalid DD.MM.YYYY date %q", value)
		}
		text = parsed.Format("2006-01-02") + "T00:00:00.00Z"
	}

	if len(text) == 10 && strings.Count(text, "-") == 2 {
		text += "T00:00:00.00Z"
	}

	if _, ok := ParseISOUTC(text); !ok {
		return "", fmt.Errorf(
			"invalid date/time %q: use ISO-8601, e.g. 2024-06-24T00:00:00.00Z, 2024-06-24, 2024-06 or 2024",
			value,
		)
	}

	if strings.HasSuffix(text, "+00:00") {
		text = strings.TrimSuffix(text, "+00:00") + "Z"
	}
	return text, nil
}

// isoLayouts are the timestamp shapes the upstream emits; zone-less values
// are interpreted as UTC.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseISOUTC parses an ISO-8601 timestamp and normalizes it to UTC.
func ParseISOUTC(value string) (time.Time, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDay parses a YYYY-MM-DD date at UTC midnight.
func ParseDay(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return parsed.UTC(), nil
}

// DayDotted renders a date-ish value as DD.MM.YYYY, or "" when the value
// does not flatten to a parseable timestamp.
func DayDotted(v any) string {
	text := strings.TrimSpace(Flatten(v))
	if text == "" {
		return ""
	}
	parsed, ok := ParseISOUTC(text)
	if !ok {
		return ""
	}
	return parsed.Format("02.01.2006")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
