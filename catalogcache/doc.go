// Package catalogcache caches catalog reads.
//
// A Reader wraps any catalog.Reader and stores each query family of a collection
// under its own tag, named "<namespace>:<family>" where the namespace is the plural
// snake_case collection name:
//
//	ideas:list        5m
//	ideas:featured    5m
//	ideas:detail      5m
//	ideas:navigation  10m
//	ideas:categories  15m
//
// Only successful results are cached. Invalidate and InvalidateAll are best effort:
// failures go to the logger and never reach callers, so a content update hook can
// call them unconditionally.
//
//	svc, _ := cache.NewTaggedService(cache.DefaultConfig(), catalogcache.Policies("Idea", nil)...)
//	ideas := catalogcache.New(catalog.NewService(client, catalog.IdeasCollection("Ideas")), svc)
//	ideas.Invalidate(ctx, "ideas:list", "ideas:detail")
//
// WithCacheTags records the entries read under a context so they can later be
// dropped together, independently of their family tags.
package catalogcache
