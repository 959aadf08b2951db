package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-catalog-cache/internal/cacheinfra"
	"github.com/goliatone/go-errors"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is a read-through cache with a single TTL.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
	Keys() []string
}

// Policy gives a tag its own TTL.
type Policy = cacheinfra.Policy

// TaggedService is a read-through cache where every entry belongs to exactly one tag
// and tags expire and are invalidated independently.
type TaggedService interface {
	GetOrFetch(ctx context.Context, tag, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Invalidate(ctx context.Context, tags ...string) error
	Delete(ctx context.Context, tag, key string) error
	InvalidateAll(ctx context.Context) error
	Tags() []string
	// TTL reports the TTL of tag and whether the tag is registered.
	TTL(tag string) (time.Duration, bool)
}

// ErrInvalidResultType is returned when a cached value does not have the type the caller asked for.
var ErrInvalidResultType = errors.New("cached value has an unexpected type", errors.CategoryInternal).
	WithTextCode("CACHE_INVALID_RESULT_TYPE")

// IsInvalidResultType reports whether err is an ErrInvalidResultType.
func IsInvalidResultType(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.TextCode == ErrInvalidResultType.TextCode
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, erase(fetchFn))
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](key, result)
}

// WithCache reads key under tag, calling fetchFn on a miss. Errors from fetchFn are
// returned as is and nothing is stored.
func WithCache[T any](ctx context.Context, service TaggedService, tag, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, tag, key, erase(fetchFn))
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](key, result)
}

// NewTaggedService constructs the default tagged cache with one policy per tag.
func NewTaggedService(cfg Config, policies ...Policy) (TaggedService, error) {
	svc, err := cacheinfra.NewTaggedService(cfg, policies...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// NewPolicy is a shorthand for Policy{Tag: tag, TTL: ttl}.
func NewPolicy(tag string, ttl time.Duration) Policy {
	return Policy{Tag: tag, TTL: ttl}
}

func erase[T any](fetchFn FetchFn[T]) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	}
}

func assertType[T any](key string, result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	v, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType.Clone().WithMetadata(map[string]any{
			"key":  key,
			"want": fmt.Sprintf("%T", zero),
			"got":  fmt.Sprintf("%T", result),
		})
	}
	return v, nil
}
