package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockCacheService stores nothing: it returns a fixed result or calls through.
type mockCacheService struct {
	result      any
	err         error
	callThrough bool
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if m.callThrough {
		return fetchFn(ctx)
	}
	return m.result, m.err
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error { return nil }

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }

func (m *mockCacheService) InvalidateKeys(ctx context.Context, keys []string) error { return nil }

func (m *mockCacheService) Keys() []string { return nil }

// mapTaggedService is a minimal in-memory TaggedService.
type mapTaggedService struct {
	mu      sync.Mutex
	entries map[string]map[string]any
}

func newMapTaggedService(tags ...string) *mapTaggedService {
	m := &mapTaggedService{entries: map[string]map[string]any{}}
	for _, tag := range tags {
		m.entries[tag] = map[string]any{}
	}
	return m
}

func (m *mapTaggedService) GetOrFetch(ctx context.Context, tag, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	m.mu.Lock()
	entries, ok := m.entries[tag]
	if !ok {
		m.mu.Unlock()
		return nil, errors.New("unknown tag " + tag)
	}
	if v, hit := entries[key]; hit {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	entries[key] = v
	m.mu.Unlock()
	return v, nil
}

func (m *mapTaggedService) Invalidate(ctx context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		m.entries[tag] = map[string]any{}
	}
	return nil
}

func (m *mapTaggedService) Delete(ctx context.Context, tag, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[tag], key)
	return nil
}

func (m *mapTaggedService) InvalidateAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tag := range m.entries {
		m.entries[tag] = map[string]any{}
	}
	return nil
}

func (m *mapTaggedService) Tags() []string { return nil }

func (m *mapTaggedService) TTL(tag string) (time.Duration, bool) { return 0, false }

func TestGetOrFetch_NilResultYieldsZeroValue(t *testing.T) {
	mock := &mockCacheService{result: nil}

	type SomeInterface interface {
		DoSomething() string
	}

	result, err := GetOrFetch[SomeInterface](context.Background(), mock, "test-key", func(ctx context.Context) (SomeInterface, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}

	ptr, err := GetOrFetch[*int](context.Background(), mock, "ptr-key", func(ctx context.Context) (*int, error) {
		return nil, nil
	})
	if err != nil || ptr != nil {
		t.Errorf("expected nil pointer and no error, got %v, %v", ptr, err)
	}
}

func TestGetOrFetch_TypeMismatch(t *testing.T) {
	mock := &mockCacheService{result: "a string"}

	result, err := GetOrFetch[int](context.Background(), mock, "k", func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if !IsInvalidResultType(err) {
		t.Fatalf("expected ErrInvalidResultType, got %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value, got %d", result)
	}
	if ErrInvalidResultType.Metadata != nil {
		t.Error("sentinel must not be mutated")
	}
}

func TestGetOrFetch_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockCacheService{callThrough: true}

	_, err := GetOrFetch(context.Background(), mock, "k", func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected fetch error, got %v", err)
	}

	got, err := GetOrFetch(context.Background(), mock, "k", func(ctx context.Context) ([]string, error) {
		return []string{"AI"}, nil
	})
	if err != nil || len(got) != 1 || got[0] != "AI" {
		t.Errorf("unexpected result %v, %v", got, err)
	}
}

func TestWithCache(t *testing.T) {
	svc := newMapTaggedService("categories")
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"AI", "Health"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := WithCache(ctx, svc, "categories", "all", fetch)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("unexpected result %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}

	_ = svc.Invalidate(ctx, "categories")
	if _, err := WithCache(ctx, svc, "categories", "all", fetch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected refetch after invalidation, got %d", calls)
	}

	if _, err := WithCache(ctx, svc, "unknown", "all", fetch); err == nil {
		t.Error("expected unknown tag to fail")
	}
}

func TestWithCache_ErrorsAreNotStored(t *testing.T) {
	svc := newMapTaggedService("list")
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("timeout")
		}
		return 7, nil
	}

	if _, err := WithCache(ctx, svc, "list", "k", fetch); err == nil {
		t.Fatal("expected first call to fail")
	}
	got, err := WithCache(ctx, svc, "list", "k", fetch)
	if err != nil || got != 7 {
		t.Errorf("expected 7, got %v, %v", got, err)
	}
}

func TestNewTaggedService_Default(t *testing.T) {
	svc, err := NewTaggedService(DefaultConfig(),
		NewPolicy("ideas:list", 5*time.Minute),
		NewPolicy("ideas:categories", 15*time.Minute),
	)
	if err != nil {
		t.Fatal(err)
	}
	if tags := svc.Tags(); len(tags) != 2 || tags[0] != "ideas:categories" {
		t.Errorf("unexpected tags %v", tags)
	}
	if ttl, ok := svc.TTL("ideas:categories"); !ok || ttl != 15*time.Minute {
		t.Errorf("expected 15m for ideas:categories, got %v %v", ttl, ok)
	}
	if _, ok := svc.TTL("ideas:detail"); ok {
		t.Error("unregistered tag must report false")
	}

	if _, err := NewTaggedService(Config{}); err == nil {
		t.Error("expected invalid config to fail")
	}
}

func TestWithCache_KeepsFetchErrorIdentity(t *testing.T) {
	svc, err := NewTaggedService(DefaultConfig(), NewPolicy("ideas:detail", time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	boom := errors.New("store unavailable")
	rec, err := WithCache(ctx, svc, "ideas:detail", "slug", func(ctx context.Context) (*int, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil result, got %v", rec)
	}

	tags, err := WithCache(ctx, svc, "ideas:detail", "tags", func(ctx context.Context) ([]string, error) {
		return nil, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || tags != nil {
		t.Errorf("expected deadline error, got %v, %v", tags, err)
	}

	calls := 0
	var missing SomeReader
	for i := 0; i < 2; i++ {
		got, err := WithCache(ctx, svc, "ideas:detail", "missing", func(ctx context.Context) (SomeReader, error) {
			calls++
			return missing, nil
		})
		if err != nil || got != nil {
			t.Fatalf("expected nil, nil; got %v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected nil result to be cached, got %d fetches", calls)
	}
}

// SomeReader is an interface result type.
type SomeReader interface {
	Read() string
}

func TestNewCacheService_InvalidConfigReturnsNilInterface(t *testing.T) {
	svc, err := NewCacheService(Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	if svc != nil {
		t.Errorf("expected a nil interface, got %#v", svc)
	}
}

func TestConfig_ValidateDelegates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.EvictionPercentage = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
