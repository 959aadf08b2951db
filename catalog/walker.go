package catalog

import (
	"context"
)

// DefaultMaxPages bounds full-collection walks.
const DefaultMaxPages = 20

// PageFetcher fetches the page starting at cursor ("" for the first page).
type PageFetcher func(ctx context.Context, cursor string) (Page, error)

// Walker drives a PageFetcher across cursor pages.
type Walker struct {
	Fetch    PageFetcher
	MaxPages int
}

// Walk calls fn for every page in store order. It stops when a page carries no
// cursor, when fn returns false, after MaxPages fetches, or on the first error.
// Empty pages that still carry a cursor are followed. It returns the number of
// fetches performed.
func (w Walker) Walk(ctx context.Context, fn func(Page) bool) (int, error) {
	limit := w.MaxPages
	if limit <= 0 {
		limit = DefaultMaxPages
	}

	cursor := ""
	for fetched := 0; fetched < limit; {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		page, err := w.Fetch(ctx, cursor)
		fetched++
		if err != nil {
			return fetched, err
		}
		if !fn(page) || page.Cursor == "" {
			return fetched, nil
		}
		cursor = page.Cursor
	}
	return limit, nil
}

// Collect walks every page and returns the records in store order.
func (w Walker) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	_, err := w.Walk(ctx, func(p Page) bool {
		out = append(out, p.Items...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
