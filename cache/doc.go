// Package cache provides the caching interfaces used by the catalog decorators and
// the default cache key serializer.
//
// # Overview
//
//   - CacheService: a read-through cache with a single TTL
//   - TaggedService: a read-through cache where each tag has its own TTL and can be
//     invalidated on its own
//   - KeySerializer: builds stable cache keys from method names and arguments
//
// Both services store values as any. The generic helpers GetOrFetch and WithCache
// restore the static type and report a mismatch as ErrInvalidResultType.
//
// # Basic Usage
//
//	svc, err := cache.NewTaggedService(cache.DefaultConfig(),
//		cache.NewPolicy("ideas:list", 5*time.Minute),
//		cache.NewPolicy("ideas:categories", 15*time.Minute),
//	)
//	key := cache.NewDefaultKeySerializer().SerializeKey("List", query)
//	page, err := cache.WithCache(ctx, svc, "ideas:list", key, func(ctx context.Context) (catalog.Page, error) {
//		return reader.List(ctx, query)
//	})
//
// Errors returned by the fetch function are passed through and never cached.
//
// # Key Serialization
//
// Scalars keep their textual form so keys stay readable in logs. Structs, maps and
// other composite values are encoded with msgpack (sorted map keys) and digested
// with xxhash. Function values are rendered with %p and are therefore stable only
// within one process.
package cache
