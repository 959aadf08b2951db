package catalog

import (
	"context"

	"github.com/goliatone/go-catalog-cache/remote"
	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
)

// FailOpen serves a Reader to rendering code. No method returns an error: failures
// are logged as warnings and replaced by empty values, so callers cannot tell "no
// results" from "store unreachable". Missing configuration is not logged at all.
type FailOpen struct {
	reader Reader
	logger *zap.Logger
}

// NewFailOpen wraps reader.
func NewFailOpen(reader Reader, logger *zap.Logger) *FailOpen {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailOpen{reader: reader, logger: logger}
}

// Reader returns the wrapped reader.
func (f *FailOpen) Reader() Reader {
	return f.reader
}

// List returns one page, or an empty page with no cursor on failure.
func (f *FailOpen) List(ctx context.Context, q ListQuery) Page {
	page, err := f.reader.List(ctx, q)
	if err != nil {
		f.warn("list", err)
		return Page{Items: []Record{}}
	}
	if page.Items == nil {
		page.Items = []Record{}
	}
	return page
}

// Featured returns featured records, or none on failure.
func (f *FailOpen) Featured(ctx context.Context, limit int) []Record {
	items, err := f.reader.Featured(ctx, limit)
	if err != nil {
		f.warn("featured", err)
		return []Record{}
	}
	return nonNil(items)
}

// Categories returns the category names, or none on failure.
func (f *FailOpen) Categories(ctx context.Context) []string {
	cats, err := f.reader.Categories(ctx)
	if err != nil {
		f.warn("categories", err)
		return []string{}
	}
	return nonNil(cats)
}

// BySlug returns the matching record or nil.
func (f *FailOpen) BySlug(ctx context.Context, slug string) *Record {
	rec, err := f.reader.BySlug(ctx, slug)
	if err != nil {
		f.warn("by slug", err, zap.String("slug", slug))
		return nil
	}
	return rec
}

// ByTitle returns the matching record or nil.
func (f *FailOpen) ByTitle(ctx context.Context, title string) *Record {
	rec, err := f.reader.ByTitle(ctx, title)
	if err != nil {
		f.warn("by title", err, zap.String("title", title))
		return nil
	}
	return rec
}

// Navigation returns the navigation entries, or none on failure.
func (f *FailOpen) Navigation(ctx context.Context) []NavEntry {
	nav, err := f.reader.Navigation(ctx)
	if err != nil {
		f.warn("navigation", err)
		return []NavEntry{}
	}
	return nonNil(nav)
}

func (f *FailOpen) warn(op string, err error, extra ...zap.Field) {
	if remote.IsNotConfigured(err) {
		return
	}
	fields := append([]zap.Field{
		zap.String("collection", f.reader.Collection().Name),
		zap.String("op", op),
		zap.Error(err),
	}, extra...)

	var e *errors.Error
	if errors.As(err, &e) {
		fields = append(fields, zap.String("category", e.Category.String()))
		if e.RequestID != "" {
			fields = append(fields, zap.String("request_id", e.RequestID))
		}
	}
	f.logger.Warn("catalog read failed, serving empty result", fields...)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
