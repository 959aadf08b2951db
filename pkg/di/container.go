package di

import (
	"context"
	"net/http"

	"github.com/goliatone/go-catalog-cache/cache"
	"github.com/goliatone/go-catalog-cache/catalog"
	"github.com/goliatone/go-catalog-cache/catalogcache"
	"github.com/goliatone/go-catalog-cache/config"
	"github.com/goliatone/go-catalog-cache/internal/logging"
	"github.com/goliatone/go-catalog-cache/remote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option customises a Container.
type Option func(*Container)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used to reach the store.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Container) {
		c.httpClient = hc
	}
}

// Container wires the catalog for both collections: one remote client, one
// catalog service per collection, a shared tagged cache and the fail-open facade
// handed to rendering code.
type Container struct {
	config        config.Config
	logger        *zap.Logger
	httpClient    *http.Client
	client        *remote.Client
	keySerializer cache.KeySerializer
	cacheService  cache.TaggedService

	ideas        *catalog.FailOpen
	technologies *catalog.FailOpen
	readers      []*catalogcache.Reader
}

// NewContainer validates cfg and builds every component. With the cache disabled
// the fail-open facade reads straight from the store.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg, keySerializer: cache.NewDefaultKeySerializer()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	clientOpts := []remote.Option{remote.WithLogger(logging.Named(c.logger, "remote"))}
	if c.httpClient != nil {
		clientOpts = append(clientOpts, remote.WithHTTPClient(c.httpClient))
	}
	c.client = remote.NewClient(cfg.Store.Remote(), clientOpts...)

	ideas := cfg.Ideas.Apply(catalog.IdeasCollection(cfg.Ideas.Table))
	technologies := cfg.Technologies.Apply(catalog.TechnologiesCollection(cfg.Technologies.Table))

	if !cfg.Cache.Disabled {
		policies := append(
			catalogcache.Policies(ideas.Name, cfg.Cache.TTLs),
			catalogcache.Policies(technologies.Name, cfg.Cache.TTLs)...,
		)
		svc, err := cache.NewTaggedService(cfg.Cache.Config, policies...)
		if err != nil {
			return nil, err
		}
		c.cacheService = svc
	}

	c.ideas = c.facade(ideas)
	c.technologies = c.facade(technologies)
	return c, nil
}

// NewContainerWithDefaults builds a container from defaults and the environment.
func NewContainerWithDefaults() (*Container, error) {
	cfg, err := config.Load("", ".env")
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg)
}

func (c *Container) facade(collection catalog.Collection) *catalog.FailOpen {
	logger := logging.Named(c.logger, catalogcache.Namespace(collection.Name))

	var reader catalog.Reader = catalog.NewService(c.client, collection,
		catalog.WithLogger(logger),
		catalog.WithMaxPages(c.config.Store.MaxPages),
	)
	if c.cacheService != nil {
		cached := catalogcache.New(reader, c.cacheService,
			catalogcache.WithLogger(logger),
			catalogcache.WithKeySerializer(c.keySerializer),
		)
		c.readers = append(c.readers, cached)
		reader = cached
	}
	return catalog.NewFailOpen(reader, logger)
}

// ListIdeas returns one page of published ideas.
func (c *Container) ListIdeas(ctx context.Context, pageSize int, cursor string, categories []string, query string) catalog.Page {
	return c.ideas.List(ctx, catalog.ListQuery{PageSize: pageSize, Cursor: cursor, Categories: categories, Query: query})
}

// ListFeaturedIdeas returns up to limit featured ideas.
func (c *Container) ListFeaturedIdeas(ctx context.Context, limit int) []catalog.Record {
	return c.ideas.Featured(ctx, limit)
}

// ListCategories returns the sorted distinct idea categories.
func (c *Container) ListCategories(ctx context.Context) []string {
	return c.ideas.Categories(ctx)
}

// GetIdeaBySlug returns the idea whose title slugifies to slug, or nil.
func (c *Container) GetIdeaBySlug(ctx context.Context, slug string) *catalog.Record {
	return c.ideas.BySlug(ctx, slug)
}

// ListMinimalIdeasForNavigation returns every idea as an id, title and slug triple.
func (c *Container) ListMinimalIdeasForNavigation(ctx context.Context) []catalog.NavEntry {
	return c.ideas.Navigation(ctx)
}

// ListTechnologies returns one page of published technology entries.
func (c *Container) ListTechnologies(ctx context.Context, pageSize int, cursor string, categories []string, query string) catalog.Page {
	return c.technologies.List(ctx, catalog.ListQuery{PageSize: pageSize, Cursor: cursor, Categories: categories, Query: query})
}

// ListTechnologyCategories returns the sorted distinct technology categories.
func (c *Container) ListTechnologyCategories(ctx context.Context) []string {
	return c.technologies.Categories(ctx)
}

// GetTechnologyBySlug returns the technology entry whose name slugifies to slug, or nil.
func (c *Container) GetTechnologyBySlug(ctx context.Context, slug string) *catalog.Record {
	return c.technologies.BySlug(ctx, slug)
}

// ListMinimalTechnologiesForNavigation returns every technology entry as an id, title and slug triple.
func (c *Container) ListMinimalTechnologiesForNavigation(ctx context.Context) []catalog.NavEntry {
	return c.technologies.Navigation(ctx)
}

// Invalidate drops the cache entries of tags. Tags no collection knows are logged
// and otherwise ignored.
func (c *Container) Invalidate(ctx context.Context, tags ...string) {
	if len(c.readers) == 0 {
		return
	}

	var unknown []string
	for _, tag := range tags {
		owned := false
		for _, r := range c.readers {
			if r.Owns(tag) {
				owned = true
				break
			}
		}
		if !owned {
			unknown = append(unknown, tag)
		}
	}

	for _, r := range c.readers {
		r.Invalidate(ctx, tags...)
	}
	if len(unknown) > 0 {
		c.logger.Info("invalidation ignored unknown cache tags", zap.Strings("tags", unknown))
	}
}

// InvalidateAll drops every cached entry of both collections.
func (c *Container) InvalidateAll(ctx context.Context) {
	for _, r := range c.readers {
		r.InvalidateAll(ctx)
	}
}

// Warm loads categories and navigation of both collections concurrently so the
// first page render hits the cache. It is a no-op without store credentials.
func (c *Container) Warm(ctx context.Context) error {
	if len(c.readers) == 0 || !c.client.Configured() {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range c.readers {
		r := r
		g.Go(func() error {
			_, err := r.Categories(ctx)
			return err
		})
		g.Go(func() error {
			_, err := r.Navigation(ctx)
			return err
		})
	}
	return g.Wait()
}

// Tags returns every family tag served by the cache, ideas first.
func (c *Container) Tags() []string {
	var out []string
	for _, r := range c.readers {
		out = append(out, r.Tags()...)
	}
	return out
}

// Ideas returns the fail-open ideas facade.
func (c *Container) Ideas() *catalog.FailOpen {
	return c.ideas
}

// Technologies returns the fail-open technologies facade.
func (c *Container) Technologies() *catalog.FailOpen {
	return c.technologies
}

// CacheService returns the shared tagged cache, nil when caching is disabled.
func (c *Container) CacheService() cache.TaggedService {
	return c.cacheService
}

// KeySerializer returns the key serializer shared by the cached readers.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Client returns the remote store client.
func (c *Container) Client() *remote.Client {
	return c.client
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}
