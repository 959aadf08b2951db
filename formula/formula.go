// Package formula builds the boolean filter expressions sent to the content store
// through the filterByFormula query parameter.
//
// Every literal interpolated into an expression goes through Escape first.
package formula

import (
	"strings"
)

// Builder composes list filters for one table.
type Builder struct {
	// StatusField and PublishedValue form the base constraint. An empty StatusField
	// disables it.
	StatusField    string
	PublishedValue string

	// CategoryField is matched against the requested categories.
	CategoryField string

	// SearchFields are tested for case-insensitive containment of the query.
	SearchFields []string
}

// Build returns the filter for the given categories and free-text query.
// Extra clauses are appended verbatim; they must already be escaped.
// A single clause is returned unwrapped, several are joined with AND.
func (b Builder) Build(categories []string, query string, extra ...string) string {
	var clauses []string

	if b.StatusField != "" {
		clauses = append(clauses, Equals(b.StatusField, b.PublishedValue))
	}

	if c := b.categoryClause(categories); c != "" {
		clauses = append(clauses, c)
	}

	if c := b.searchClause(query); c != "" {
		clauses = append(clauses, c)
	}

	for _, c := range extra {
		if strings.TrimSpace(c) != "" {
			clauses = append(clauses, c)
		}
	}

	return And(clauses...)
}

// Published returns only the base constraint, combined with any extra clauses.
func (b Builder) Published(extra ...string) string {
	return b.Build(nil, "", extra...)
}

func (b Builder) categoryClause(categories []string) string {
	if b.CategoryField == "" {
		return ""
	}

	seen := make(map[string]struct{}, len(categories))
	var parts []string
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		parts = append(parts, Or(
			Equals(b.CategoryField, category),
			Contains(b.CategoryField, category),
		))
	}
	return Or(parts...)
}

func (b Builder) searchClause(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(b.SearchFields) == 0 {
		return ""
	}

	parts := make([]string, 0, len(b.SearchFields))
	for _, field := range b.SearchFields {
		parts = append(parts, "FIND("+Quote(query)+", LOWER("+Ref(field)+")) > 0")
	}
	return Or(parts...)
}

// Contains tests membership of value in a multi-value field. Both needle and haystack
// are wrapped in commas so that "AI" never matches "AI/ML" or "FAIR".
func Contains(field, value string) string {
	return "FIND(" + Quote(","+value+",") + ", \",\" & ARRAYJOIN(" + Ref(field) + ", \",\") & \",\") > 0"
}

// Equals renders {field}='value'.
func Equals(field, value string) string {
	return Ref(field) + "=" + Quote(value)
}

// Truthy renders a checkbox test.
func Truthy(field string) string {
	return Ref(field) + "=TRUE()"
}

// Ref renders a field reference.
func Ref(field string) string {
	return "{" + field + "}"
}

// Quote escapes and single-quotes a literal.
func Quote(value string) string {
	return "'" + Escape(value) + "'"
}

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Escape escapes backslashes and single quotes.
func Escape(value string) string {
	return escaper.Replace(value)
}

// And joins clauses. Zero clauses yield "", one clause is returned as is.
func And(clauses ...string) string {
	return group("AND", clauses)
}

// Or joins clauses. Zero clauses yield "", one clause is returned as is.
func Or(clauses ...string) string {
	return group("OR", clauses)
}

func group(op string, clauses []string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	default:
		return op + "(" + strings.Join(clauses, ", ") + ")"
	}
}
