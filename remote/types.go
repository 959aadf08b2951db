package remote

import (
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// MaxPageSize is the largest page the store accepts.
	MaxPageSize = 100
	// DefaultPageSize is used when callers pass a non-positive size.
	DefaultPageSize = 16
)

// ErrNotConfigured is returned when credentials or base identifiers are missing.
// Callers treat it as "no results" without logging.
var ErrNotConfigured = errors.New("content store is not configured", errors.CategoryValidation).
	WithTextCode("STORE_NOT_CONFIGURED")

// Record is one raw row as returned by the store.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// Created parses CreatedTime, returning the zero time when absent or malformed.
func (r Record) Created() time.Time {
	if r.CreatedTime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.CreatedTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Page is one raw list response. Offset is empty on the last page.
type Page struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// Sort orders results by a field.
type Sort struct {
	Field     string
	Direction string // "asc" or "desc"
}

// ListRequest describes one list call.
type ListRequest struct {
	Table      string
	PageSize   int
	Offset     string
	Sort       []Sort
	Formula    string
	Fields     []string
	MaxRecords int
}

// ClampPageSize bounds n to 1..MaxPageSize, mapping non-positive values to DefaultPageSize.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
