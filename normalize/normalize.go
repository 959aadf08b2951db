// Package normalize converts raw field values returned by the content store into
// canonical scalar and list shapes.
//
// The store is inconsistent about multi-value fields: a field holding one value may
// round-trip as a bare string while the same field holding several values comes back
// as a list of strings or a list of tagged objects ({"name": "..."}). Every function in
// this package is total: unknown shapes degrade to the empty value instead of failing.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// nameKey is the key carried by tagged objects (select options, linked records).
const nameKey = "name"

// Scalar returns a single canonical string for raw.
// Lists yield their first usable element. The boolean reports whether a value was found.
func Scalar(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return v[0], true
	case []any:
		for _, item := range v {
			if s, ok := element(item); ok {
				return s, true
			}
		}
		return "", false
	case []map[string]any:
		for _, item := range v {
			if s, ok := nameOf(item); ok {
				return s, true
			}
		}
		return "", false
	default:
		return element(v)
	}
}

// List returns every usable string held by raw, in store order.
// The result is never nil.
func List(raw any) []string {
	out := []string{}
	switch v := raw.(type) {
	case nil:
	case string:
		out = append(out, v)
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := element(item); ok {
				out = append(out, s)
			}
		}
	case []map[string]any:
		for _, item := range v {
			if s, ok := nameOf(item); ok {
				out = append(out, s)
			}
		}
	default:
		if s, ok := element(v); ok {
			out = append(out, s)
		}
	}
	return out
}

// Number extracts a numeric value. Numeric strings are accepted.
func Number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool reports whether raw is a truthy checkbox-style value.
func Bool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		n, ok := Number(raw)
		return ok && n != 0
	}
}

// element handles the shapes allowed inside a list: strings and tagged objects.
func element(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case map[string]any:
		return nameOf(v)
	case map[string]string:
		s, ok := v[nameKey]
		return s, ok
	default:
		return "", false
	}
}

func nameOf(m map[string]any) (string, bool) {
	s, ok := m[nameKey].(string)
	return s, ok
}
