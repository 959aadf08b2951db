package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// sturdycService wraps a single sturdyc client: one TTL for every key.
type sturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and creates a single-TTL cache service.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &sturdycService{client: newClient(cfg, cfg.TTL)}, nil
}

func newClient(cfg Config, ttl time.Duration) *sturdyc.Client[any] {
	return sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		ttl,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
}

// GetOrFetch returns the cached value for key or calls fetchFn and stores its result.
// Concurrent misses on the same key share one fetchFn call. Errors are not cached.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	return unboxed(s.client.GetOrFetch(ctx, key, boxed(fetchFn)))
}

// nilValue stands in for a nil result. sturdyc rejects a nil any as an invalid
// response type and would replace the fetch error with ErrInvalidType.
type nilValue struct{}

func boxed(fetchFn func(context.Context) (any, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if v == nil {
			return nilValue{}, err
		}
		return v, err
	}
}

func unboxed(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := v.(nilValue); ok {
		return nil, nil
	}
	return v, nil
}

// Delete removes a single entry.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes the given entries.
func (s *sturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Keys lists the keys currently held.
func (s *sturdycService) Keys() []string {
	return s.client.ScanKeys()
}
