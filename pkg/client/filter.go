package client

import (
	"fmt"
	"strings"
)

// DefaultOrderBy keeps pagination stable across requests.
const DefaultOrderBy = "docCreationDate desc"

// BuildFilter assembles the $filter expression for one page walk: country
// equality, optionally the server-side "updated since" clause, and any
// extra clauses (the time-slice date range). Clauses are ANDed.
func BuildFilter(country string, updatedFrom string, serverUpdatedFilter bool, extraClauses []string) string {
	clauses := []string{fmt.Sprintf("unifiedCountryCode/value eq '%s'", country)}
	if updatedFrom != "" && serverUpdatedFilter {
		clauses = append(clauses, "resourceItemStatusDetails/updateDateTime ge "+updatedFrom)
	}
	clauses = append(clauses, extraClauses...)
	return strings.Join(clauses, " and ")
}

// SliceClauses builds the inclusive date-range clauses for one time slice.
// Days are YYYY-MM-DD; the end bound covers the whole last day.
func SliceClauses(dateField, startDay, endDay string) []string {
	return []string{
		fmt.Sprintf("%s ge %sT00:00:00.00Z", dateField, startDay),
		fmt.Sprintf("%s le %sT23:59:59.99Z", dateField, endDay),
	}
}
