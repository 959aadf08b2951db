package normalize

import "strings"

// Accessor reads one candidate value out of a record's fields.
// It returns the value, the name of the field it came from and whether it was found.
type Accessor func(fields map[string]any) (value string, field string, ok bool)

// Field returns an accessor reading the named field as a scalar.
// Blank values count as absent so the next fallback gets a chance.
func Field(name string) Accessor {
	return func(fields map[string]any) (string, string, bool) {
		if fields == nil {
			return "", "", false
		}
		v, ok := Scalar(fields[name])
		if !ok || strings.TrimSpace(v) == "" {
			return "", "", false
		}
		return v, name, true
	}
}

// Fields builds one accessor per field name, preserving order.
func Fields(names ...string) []Accessor {
	out := make([]Accessor, 0, len(names))
	for _, name := range names {
		out = append(out, Field(name))
	}
	return out
}

// FirstOf tries each accessor in sequence and returns the first defined result.
func FirstOf(fields map[string]any, accessors ...Accessor) (string, string, bool) {
	for _, access := range accessors {
		if access == nil {
			continue
		}
		if v, field, ok := access(fields); ok {
			return v, field, true
		}
	}
	return "", "", false
}

// FirstList returns the list held by the first field that yields at least one value.
func FirstList(fields map[string]any, names ...string) []string {
	for _, name := range names {
		if fields == nil {
			break
		}
		if vals := List(fields[name]); len(vals) > 0 {
			return vals
		}
	}
	return []string{}
}
