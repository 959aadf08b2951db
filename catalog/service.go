// Package catalog reads normalised records out of the content store: paginated
// filtered lists, category enumeration, navigation ordering and lookup by slug.
//
// Service returns explicit errors. FailOpen wraps any Reader with the rendering
// contract where every call yields a value and failures only show up in the logs.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-catalog-cache/formula"
	"github.com/goliatone/go-catalog-cache/remote"
	"go.uber.org/zap"
)

// scanPageSize is the page size used by full-collection walks.
const scanPageSize = remote.MaxPageSize

// Store is the slice of the remote client the catalog depends on.
type Store interface {
	Fetch(ctx context.Context, req remote.ListRequest) (remote.Page, error)
	FindOne(ctx context.Context, table, formula string, fields []string) (*remote.Record, error)
}

// Reader is the read API of one collection.
type Reader interface {
	Collection() Collection
	List(ctx context.Context, q ListQuery) (Page, error)
	Featured(ctx context.Context, limit int) ([]Record, error)
	Categories(ctx context.Context) ([]string, error)
	BySlug(ctx context.Context, slug string) (*Record, error)
	ByTitle(ctx context.Context, title string) (*Record, error)
	Navigation(ctx context.Context) ([]NavEntry, error)
}

var _ Reader = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxPages bounds every full-collection walk.
func WithMaxPages(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// Service reads one collection straight from the store.
type Service struct {
	store      Store
	collection Collection
	filters    formula.Builder
	maxPages   int
	logger     *zap.Logger
}

// NewService builds a Service for collection.
func NewService(store Store, collection Collection, opts ...Option) *Service {
	s := &Service{
		store:      store,
		collection: collection,
		filters:    collection.Filters(),
		maxPages:   DefaultMaxPages,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the field mapping served by s.
func (s *Service) Collection() Collection {
	return s.collection
}

// List returns one page of published records matching the optional categories and query.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	raw, err := s.store.Fetch(ctx, remote.ListRequest{
		Table:    s.collection.Table,
		PageSize: remote.ClampPageSize(q.PageSize),
		Offset:   q.Cursor,
		Sort:     s.collection.Sort(),
		Formula:  s.filters.Build(q.Categories, q.Query),
		Fields:   s.collection.ListFields(),
	})
	if err != nil {
		return Page{}, err
	}
	return s.decodePage(raw, false), nil
}

// Featured returns up to limit published records flagged as featured.
func (s *Service) Featured(ctx context.Context, limit int) ([]Record, error) {
	var extra []string
	if s.collection.FeaturedField != "" {
		extra = append(extra, formula.Truthy(s.collection.FeaturedField))
	}
	size := remote.ClampPageSize(limit)
	raw, err := s.store.Fetch(ctx, remote.ListRequest{
		Table:      s.collection.Table,
		PageSize:   size,
		MaxRecords: size,
		Sort:       s.collection.Sort(),
		Formula:    s.filters.Published(extra...),
		Fields:     s.collection.ListFields(),
	})
	if err != nil {
		return nil, err
	}
	return s.decodePage(raw, false).Items, nil
}

// Categories enumerates the distinct trimmed category names of published records,
// sorted. Names are compared case-sensitively.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	walker := s.walker(s.collection.CategoryFieldSet())
	_, err := walker.Walk(ctx, func(p Page) bool {
		for _, rec := range p.Items {
			for _, c := range rec.Categories {
				seen[c] = struct{}{}
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// BySlug finds the record whose title slugifies to slug.
//
// The store has no slug column, so this scans minimal pages (titles only) until a
// title matches, then fetches that single record with its detail fields. When two
// titles share a slug the first one in store order wins. It returns nil, nil when
// nothing matches within the walk bound.
func (s *Service) BySlug(ctx context.Context, slug string) (*Record, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}

	var match *Record
	walker := s.walker(s.collection.MinimalFields())
	pages, err := walker.Walk(ctx, func(p Page) bool {
		for i := range p.Items {
			if p.Items[i].Slug == slug {
				rec := p.Items[i]
				match = &rec
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		s.logger.Debug("slug not found",
			zap.String("collection", s.collection.Name),
			zap.String("slug", slug),
			zap.Int("pages", pages))
		return nil, nil
	}

	field := match.TitleField
	if field == "" {
		// Untitled records cannot be looked up by title.
		return nil, nil
	}
	return s.byField(ctx, field, match.Title)
}

// ByTitle fetches the published record whose primary title field equals title,
// including detail fields.
func (s *Service) ByTitle(ctx context.Context, title string) (*Record, error) {
	if title == "" || len(s.collection.TitleFields) == 0 {
		return nil, nil
	}
	return s.byField(ctx, s.collection.TitleFields[0], title)
}

func (s *Service) byField(ctx context.Context, field, value string) (*Record, error) {
	raw, err := s.store.FindOne(ctx, s.collection.Table,
		s.filters.Published(formula.Equals(field, value)),
		s.collection.DetailFieldSet())
	if err != nil || raw == nil {
		return nil, err
	}
	rec := s.collection.Decode(*raw, true)
	return &rec, nil
}

// Navigation lists every published record as {id, title, slug}. Records carrying a
// sort key come first in ascending key order; the rest keep store order.
func (s *Service) Navigation(ctx context.Context) ([]NavEntry, error) {
	records, err := s.walker(s.collection.MinimalFields()).Collect(ctx)
	if err != nil {
		return nil, err
	}

	SortStable(records)

	out := make([]NavEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, NavEntry{ID: rec.ID, Title: rec.Title, Slug: rec.Slug})
	}
	return out, nil
}

// walker scans published records, requesting only fields.
func (s *Service) walker(fields []string) Walker {
	return Walker{
		MaxPages: s.maxPages,
		Fetch: func(ctx context.Context, cursor string) (Page, error) {
			raw, err := s.store.Fetch(ctx, remote.ListRequest{
				Table:    s.collection.Table,
				PageSize: scanPageSize,
				Offset:   cursor,
				Sort:     s.collection.Sort(),
				Formula:  s.filters.Published(),
				Fields:   fields,
			})
			if err != nil {
				return Page{}, err
			}
			return s.decodePage(raw, false), nil
		},
	}
}

func (s *Service) decodePage(raw remote.Page, detail bool) Page {
	items := make([]Record, 0, len(raw.Records))
	for _, r := range raw.Records {
		items = append(items, s.collection.Decode(r, detail))
	}
	return Page{Items: items, Cursor: raw.Offset}
}

// SortStable orders records by SortKey in place. Records without a key follow the
// keyed ones and keep their relative order.
func SortStable(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].SortKey, records[j].SortKey
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
}
