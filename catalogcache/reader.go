package catalogcache

import (
	"context"
	"time"

	"github.com/goliatone/go-catalog-cache/cache"
	"github.com/goliatone/go-catalog-cache/catalog"
	"github.com/jinzhu/inflection"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Query families. Each family of a collection is cached under its own tag.
const (
	FamilyList       = "list"
	FamilyFeatured   = "featured"
	FamilyDetail     = "detail"
	FamilyCategories = "categories"
	FamilyNavigation = "navigation"
)

// Families lists every query family in a stable order.
var Families = []string{FamilyList, FamilyFeatured, FamilyDetail, FamilyCategories, FamilyNavigation}

// DefaultTTLs are the per-family TTLs used when none are configured.
var DefaultTTLs = map[string]time.Duration{
	FamilyList:       5 * time.Minute,
	FamilyFeatured:   5 * time.Minute,
	FamilyDetail:     5 * time.Minute,
	FamilyCategories: 15 * time.Minute,
	FamilyNavigation: 10 * time.Minute,
}

// Namespace turns a collection name into its tag namespace: "Idea" becomes "ideas",
// "Technology" becomes "technologies".
func Namespace(collection string) string {
	return toSnake(inflection.Plural(collection))
}

// Tag returns the tag of family within collection, e.g. "ideas:categories".
func Tag(collection, family string) string {
	return Namespace(collection) + ":" + family
}

// Policies returns one cache policy per family of collection. Families missing from
// ttls use DefaultTTLs.
func Policies(collection string, ttls map[string]time.Duration) []cache.Policy {
	out := make([]cache.Policy, 0, len(Families))
	for _, family := range Families {
		ttl, ok := ttls[family]
		if !ok || ttl <= 0 {
			ttl = DefaultTTLs[family]
		}
		out = append(out, cache.NewPolicy(Tag(collection, family), ttl))
	}
	return out
}

var _ catalog.Reader = (*Reader)(nil)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for invalidation failures.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(r *Reader) {
		if keys != nil {
			r.keys = keys
		}
	}
}

// Reader decorates a catalog.Reader with a read-through cache. Results are shared
// between callers and must not be mutated.
type Reader struct {
	base   catalog.Reader
	cache  cache.TaggedService
	keys   cache.KeySerializer
	tags   map[string]string
	logger *zap.Logger

	// request tag -> cache key -> family tag owning the key
	requestTags *xsync.MapOf[string, *xsync.MapOf[string, string]]
}

// New wraps base. svc must know the tags returned by Policies for base's collection.
func New(base catalog.Reader, svc cache.TaggedService, opts ...Option) *Reader {
	name := base.Collection().Name
	r := &Reader{
		base:        base,
		cache:       svc,
		keys:        cache.NewDefaultKeySerializer(),
		tags:        make(map[string]string, len(Families)),
		logger:      zap.NewNop(),
		requestTags: xsync.NewMapOf[string, *xsync.MapOf[string, string]](),
	}
	for _, family := range Families {
		r.tags[family] = Tag(name, family)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collection returns the wrapped collection.
func (r *Reader) Collection() catalog.Collection {
	return r.base.Collection()
}

// Base returns the undecorated reader.
func (r *Reader) Base() catalog.Reader {
	return r.base
}

func (r *Reader) List(ctx context.Context, q catalog.ListQuery) (catalog.Page, error) {
	return read(ctx, r, FamilyList, r.keys.SerializeKey("List", q), func(ctx context.Context) (catalog.Page, error) {
		return r.base.List(ctx, q)
	})
}

func (r *Reader) Featured(ctx context.Context, limit int) ([]catalog.Record, error) {
	return read(ctx, r, FamilyFeatured, r.keys.SerializeKey("Featured", limit), func(ctx context.Context) ([]catalog.Record, error) {
		return r.base.Featured(ctx, limit)
	})
}

func (r *Reader) Categories(ctx context.Context) ([]string, error) {
	return read(ctx, r, FamilyCategories, r.keys.SerializeKey("Categories"), r.base.Categories)
}

// BySlug caches misses too: a nil record stays nil until the detail tag expires or
// is invalidated.
func (r *Reader) BySlug(ctx context.Context, slug string) (*catalog.Record, error) {
	return read(ctx, r, FamilyDetail, r.keys.SerializeKey("BySlug", slug), func(ctx context.Context) (*catalog.Record, error) {
		return r.base.BySlug(ctx, slug)
	})
}

func (r *Reader) ByTitle(ctx context.Context, title string) (*catalog.Record, error) {
	return read(ctx, r, FamilyDetail, r.keys.SerializeKey("ByTitle", title), func(ctx context.Context) (*catalog.Record, error) {
		return r.base.ByTitle(ctx, title)
	})
}

func (r *Reader) Navigation(ctx context.Context) ([]catalog.NavEntry, error) {
	return read(ctx, r, FamilyNavigation, r.keys.SerializeKey("Navigation"), r.base.Navigation)
}

// Tags returns the family tags of this reader, in Families order.
func (r *Reader) Tags() []string {
	out := make([]string, 0, len(Families))
	for _, family := range Families {
		out = append(out, r.tags[family])
	}
	return out
}

// Owns reports whether tag is a family tag of this reader or a request tag it has
// recorded entries under.
func (r *Reader) Owns(tag string) bool {
	if r.isFamilyTag(tag) {
		return true
	}
	_, ok := r.requestTags.Load(tag)
	return ok
}

// Invalidate drops the entries of the given tags this reader owns and ignores the
// rest. It returns how many tags were handled. Failures are logged, never returned.
func (r *Reader) Invalidate(ctx context.Context, tags ...string) int {
	handled := 0
	var families []string
	for _, tag := range dedupeStrings(tags) {
		if r.isFamilyTag(tag) {
			families = append(families, tag)
			handled++
			continue
		}
		if keys, ok := r.requestTags.LoadAndDelete(tag); ok {
			r.forget(ctx, tag, keys)
			handled++
		}
	}

	if len(families) > 0 {
		if err := r.cache.Invalidate(ctx, families...); err != nil {
			r.logger.Warn("cache invalidation failed",
				zap.String("collection", r.base.Collection().Name),
				zap.Strings("tags", families),
				zap.Error(err))
		} else {
			r.logger.Debug("cache invalidated", zap.Strings("tags", families))
		}
	}
	return handled
}

// InvalidateAll drops every entry of this reader.
func (r *Reader) InvalidateAll(ctx context.Context) {
	r.Invalidate(ctx, r.Tags()...)
	r.requestTags.Clear()
}

func (r *Reader) isFamilyTag(tag string) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r *Reader) forget(ctx context.Context, requestTag string, keys *xsync.MapOf[string, string]) {
	keys.Range(func(key, owner string) bool {
		if err := r.cache.Delete(ctx, owner, key); err != nil {
			r.logger.Warn("cache entry delete failed",
				zap.String("tag", requestTag),
				zap.String("key", key),
				zap.Error(err))
		}
		return true
	})
}

func (r *Reader) track(ctx context.Context, owner, key string) {
	for _, tag := range cacheTagsFromContext(ctx) {
		keys, _ := r.requestTags.LoadOrCompute(tag, func() *xsync.MapOf[string, string] {
			return xsync.NewMapOf[string, string]()
		})
		keys.Store(key, owner)
	}
}

func read[T any](ctx context.Context, r *Reader, family, key string, fetch cache.FetchFn[T]) (T, error) {
	tag := r.tags[family]
	r.track(ctx, tag, key)
	return cache.WithCache(ctx, r.cache, tag, key, fetch)
}
