package catalog

import (
	"strings"

	"github.com/goliatone/go-catalog-cache/formula"
	"github.com/goliatone/go-catalog-cache/normalize"
	"github.com/goliatone/go-catalog-cache/remote"
)

// Collection maps one store table onto Record. Every *Fields slice is an ordered
// list of fallbacks: the first field holding a value wins.
type Collection struct {
	Name  string
	Table string

	TitleFields    []string
	SummaryFields  []string
	CategoryFields []string

	// DetailFields are requested only by detail lookups. The well-known
	// ProblemField, SolutionField and LinkField are lifted into Detail; any other
	// detail field ends up in Detail.Extra.
	DetailFields  []string
	ProblemField  string
	SolutionField string
	LinkField     string

	SortField      string
	StatusField    string
	PublishedValue string
	FeaturedField  string

	// RequestFields sends fields[] projections with every read. Every listed
	// field, fallbacks included, must then exist in the table: the store rejects
	// unknown field names.
	RequestFields bool
	// SortInStore asks the store to sort by SortField. Without it SortField only
	// feeds the client-side SortKey.
	SortInStore bool
}

// IdeasCollection returns the default mapping for the ideas table.
func IdeasCollection(table string) Collection {
	return Collection{
		Name:           "Idea",
		Table:          table,
		TitleFields:    []string{"Title", "Name", "Idea"},
		SummaryFields:  []string{"Blurb", "Summary", "Description"},
		CategoryFields: []string{"Category", "Categories"},
		DetailFields:   []string{"Problem", "Solution", "Link"},
		ProblemField:   "Problem",
		SolutionField:  "Solution",
		LinkField:      "Link",
		SortField:      "Order",
		StatusField:    "Status",
		PublishedValue: "Published",
		FeaturedField:  "Featured",
	}
}

// TechnologiesCollection returns the default mapping for the technology table.
func TechnologiesCollection(table string) Collection {
	return Collection{
		Name:           "Technology",
		Table:          table,
		TitleFields:    []string{"Name", "Title"},
		SummaryFields:  []string{"Description", "Blurb", "Summary"},
		CategoryFields: []string{"Category", "Type"},
		DetailFields:   []string{"Website", "Link"},
		LinkField:      "Website",
		SortField:      "Order",
		StatusField:    "Status",
		PublishedValue: "Published",
	}
}

// Filters returns the formula builder for this collection. Formulas name fields
// directly, so only the first field of each fallback list is referenced: the
// category filter targets CategoryFields[0] and search covers TitleFields[0] and
// SummaryFields[0]. Records whose categories live only in a later fallback field
// are listed under them but cannot be filtered by them; put the table's real
// column first to filter on it.
func (c Collection) Filters() formula.Builder {
	b := formula.Builder{
		StatusField:    c.StatusField,
		PublishedValue: c.PublishedValue,
	}
	if len(c.CategoryFields) > 0 {
		b.CategoryField = c.CategoryFields[0]
	}
	if len(c.TitleFields) > 0 {
		b.SearchFields = append(b.SearchFields, c.TitleFields[0])
	}
	if len(c.SummaryFields) > 0 {
		b.SearchFields = append(b.SearchFields, c.SummaryFields[0])
	}
	return b
}

// Sort returns the store-side sort for list calls, if any.
func (c Collection) Sort() []remote.Sort {
	if !c.SortInStore || c.SortField == "" {
		return nil
	}
	return []remote.Sort{{Field: c.SortField, Direction: "asc"}}
}

// MinimalFields are requested while scanning: enough to compute titles and order.
// Like every projection below it is nil unless RequestFields is set, in which
// case the store returns every field and Decode picks what it needs.
func (c Collection) MinimalFields() []string {
	return c.projection(c.TitleFields, []string{c.SortField})
}

// ListFields are requested by list calls.
func (c Collection) ListFields() []string {
	return c.projection(c.TitleFields, c.SummaryFields, c.CategoryFields, []string{c.SortField, c.FeaturedField})
}

// DetailFieldSet is ListFields plus the detail fields.
func (c Collection) DetailFieldSet() []string {
	return c.projection(c.TitleFields, c.SummaryFields, c.CategoryFields,
		[]string{c.SortField, c.FeaturedField}, c.DetailFields,
		[]string{c.ProblemField, c.SolutionField, c.LinkField})
}

// CategoryFieldSet is requested while enumerating categories.
func (c Collection) CategoryFieldSet() []string {
	return c.projection(c.CategoryFields)
}

func (c Collection) projection(groups ...[]string) []string {
	if !c.RequestFields {
		return nil
	}
	return uniqueFields(groups...)
}

// Decode normalises a raw record. Detail is filled only when detail is true.
func (c Collection) Decode(raw remote.Record, detail bool) Record {
	fields := raw.Fields

	title, titleField, ok := normalize.FirstOf(fields, normalize.Fields(c.TitleFields...)...)
	// The title is kept verbatim: exact-title lookups must match the stored value.
	if !ok {
		title = UntitledTitle
	}
	summary, _, _ := normalize.FirstOf(fields, normalize.Fields(c.SummaryFields...)...)

	categories := trimAll(normalize.FirstList(fields, c.CategoryFields...))

	rec := Record{
		ID:          raw.ID,
		Title:       title,
		Slug:        Slugify(title),
		Summary:     summary,
		Categories:  categories,
		TitleField:  titleField,
		CreatedTime: raw.Created(),
	}
	if len(categories) > 0 {
		rec.Category = categories[0]
	}
	if c.SortField != "" {
		if n, ok := normalize.Number(fields[c.SortField]); ok {
			rec.SortKey = &n
		}
	}
	if c.FeaturedField != "" {
		rec.Featured = normalize.Bool(fields[c.FeaturedField])
	}
	if detail {
		rec.Detail = c.decodeDetail(fields)
	}
	return rec
}

func (c Collection) decodeDetail(fields map[string]any) *Detail {
	d := &Detail{}
	known := map[string]*string{}
	if c.ProblemField != "" {
		known[c.ProblemField] = &d.Problem
	}
	if c.SolutionField != "" {
		known[c.SolutionField] = &d.Solution
	}
	if c.LinkField != "" {
		known[c.LinkField] = &d.Link
	}

	for name, dst := range known {
		if v, ok := normalize.Scalar(fields[name]); ok {
			*dst = v
		}
	}
	for _, name := range c.DetailFields {
		if _, isKnown := known[name]; isKnown {
			continue
		}
		v, ok := normalize.Scalar(fields[name])
		if !ok {
			continue
		}
		// Link falls back to any other link-like detail field.
		if d.Link == "" && strings.EqualFold(name, "link") {
			d.Link = v
			continue
		}
		if d.Extra == nil {
			d.Extra = map[string]string{}
		}
		d.Extra[name] = v
	}
	return d
}

func uniqueFields(groups ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, group := range groups {
		for _, f := range group {
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
