package catalog

import "time"

// UntitledTitle is used when none of a collection's title fields hold a value.
const UntitledTitle = "Untitled"

// Record is one normalised catalog entry. Records are never mutated after decoding.
type Record struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Summary string `json:"summary"`

	// Category holds at most one value even when the store holds several.
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories,omitempty"`

	// Detail is only populated by detail lookups.
	Detail *Detail `json:"detail,omitempty"`

	SortKey     *float64  `json:"sortKey,omitempty"`
	Featured    bool      `json:"featured,omitempty"`
	CreatedTime time.Time `json:"createdTime,omitempty"`

	// TitleField names the store field the title was read from.
	TitleField string `json:"-"`
}

// Detail holds the extended attributes fetched in detail mode.
type Detail struct {
	Problem  string            `json:"problem,omitempty"`
	Solution string            `json:"solution,omitempty"`
	Link     string            `json:"link,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Page is the result of one list call. Cursor is empty on the last page.
type Page struct {
	Items  []Record `json:"items"`
	Cursor string   `json:"cursor,omitempty"`
}

// HasMore reports whether another page can be requested.
func (p Page) HasMore() bool {
	return p.Cursor != ""
}

// NavEntry is the minimal shape used for prev/next navigation.
type NavEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// ListQuery selects one page of a collection.
type ListQuery struct {
	PageSize   int      `json:"pageSize"`
	Cursor     string   `json:"cursor,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Query      string   `json:"query,omitempty"`
}
