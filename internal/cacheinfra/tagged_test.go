package cacheinfra

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
)

func testConfig() Config {
	return Config{Capacity: 100, NumShards: 2, TTL: time.Minute, EvictionPercentage: 10}
}

func counter(calls *int32, value any) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestNewTaggedService(t *testing.T) {
	t.Run("registers policies", func(t *testing.T) {
		svc, err := NewTaggedService(testConfig(),
			Policy{Tag: "ideas:list", TTL: 5 * time.Minute},
			Policy{Tag: "ideas:categories", TTL: 15 * time.Minute},
			Policy{Tag: "ideas:navigation"},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"ideas:categories", "ideas:list", "ideas:navigation"}
		if got := svc.Tags(); !reflect.DeepEqual(got, want) {
			t.Errorf("expected tags %v, got %v", want, got)
		}
		if ttl, _ := svc.TTL("ideas:categories"); ttl != 15*time.Minute {
			t.Errorf("expected 15m TTL, got %v", ttl)
		}
		if ttl, _ := svc.TTL("ideas:navigation"); ttl != time.Minute {
			t.Errorf("expected default TTL for zero policy TTL, got %v", ttl)
		}
	})

	tests := []struct {
		name     string
		cfg      Config
		policies []Policy
		field    string
	}{
		{name: "invalid config", cfg: Config{}, field: "Capacity"},
		{name: "blank tag", cfg: testConfig(), policies: []Policy{{Tag: "  "}}, field: "Policy.Tag"},
		{name: "negative TTL", cfg: testConfig(), policies: []Policy{{Tag: "a", TTL: -1}}, field: "Policy.TTL"},
		{name: "duplicate tag", cfg: testConfig(), policies: []Policy{{Tag: "a"}, {Tag: "a"}}, field: "Policy.Tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTaggedService(tt.cfg, tt.policies...)
			if svc != nil {
				t.Error("expected nil service")
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestTaggedService_TagsAreIndependent(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "list"}, Policy{Tag: "categories"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var listCalls, catCalls int32
	for i := 0; i < 3; i++ {
		if _, err := svc.GetOrFetch(ctx, "list", "same-key", counter(&listCalls, "page")); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.GetOrFetch(ctx, "categories", "same-key", counter(&catCalls, []string{"AI"})); err != nil {
			t.Fatal(err)
		}
	}
	if listCalls != 1 || catCalls != 1 {
		t.Fatalf("expected one fetch per tag, got list=%d categories=%d", listCalls, catCalls)
	}

	if err := svc.Invalidate(ctx, "list"); err != nil {
		t.Fatal(err)
	}
	if svc.Len("list") != 0 {
		t.Errorf("expected list tag to be empty, got %d entries", svc.Len("list"))
	}
	if svc.Len("categories") != 1 {
		t.Errorf("expected categories tag untouched, got %d entries", svc.Len("categories"))
	}

	_, _ = svc.GetOrFetch(ctx, "list", "same-key", counter(&listCalls, "page"))
	_, _ = svc.GetOrFetch(ctx, "categories", "same-key", counter(&catCalls, []string{"AI"}))
	if listCalls != 2 || catCalls != 1 {
		t.Errorf("expected only list to refetch, got list=%d categories=%d", listCalls, catCalls)
	}
}

func TestTaggedService_TTLExpiry(t *testing.T) {
	svc, err := NewTaggedService(testConfig(),
		Policy{Tag: "short", TTL: 30 * time.Millisecond},
		Policy{Tag: "long", TTL: time.Hour},
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var shortCalls, longCalls int32
	_, _ = svc.GetOrFetch(ctx, "short", "k", counter(&shortCalls, 1))
	_, _ = svc.GetOrFetch(ctx, "long", "k", counter(&longCalls, 1))

	time.Sleep(80 * time.Millisecond)

	_, _ = svc.GetOrFetch(ctx, "short", "k", counter(&shortCalls, 1))
	_, _ = svc.GetOrFetch(ctx, "long", "k", counter(&longCalls, 1))

	if shortCalls != 2 {
		t.Errorf("expected short tag to refetch after its TTL, got %d fetches", shortCalls)
	}
	if longCalls != 1 {
		t.Errorf("expected long tag to stay cached, got %d fetches", longCalls)
	}
}

func TestTaggedService_InvalidateAll(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "a"}, Policy{Tag: "b"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var calls int32
	for _, tag := range []string{"a", "b"} {
		for _, key := range []string{"x", "y"} {
			_, _ = svc.GetOrFetch(ctx, tag, key, counter(&calls, key))
		}
	}
	if calls != 4 {
		t.Fatalf("expected 4 fetches, got %d", calls)
	}

	if err := svc.InvalidateAll(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Len("a")+svc.Len("b") != 0 {
		t.Error("expected every tag to be empty")
	}
	if !reflect.DeepEqual(svc.Tags(), []string{"a", "b"}) {
		t.Error("expected tags to survive invalidation")
	}
}

func TestTaggedService_Delete(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "detail"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var calls int32
	_, _ = svc.GetOrFetch(ctx, "detail", "one", counter(&calls, 1))
	_, _ = svc.GetOrFetch(ctx, "detail", "two", counter(&calls, 2))

	if err := svc.Delete(ctx, "detail", "one"); err != nil {
		t.Fatal(err)
	}
	if got := sortedKeys(svc.tagKeys("detail")); !reflect.DeepEqual(got, []string{"two"}) {
		t.Errorf("expected only key two to remain, got %v", got)
	}
	if err := svc.Delete(ctx, "nope", "one"); !IsUnknownTag(err) {
		t.Errorf("expected unknown tag error, got %v", err)
	}
}

func TestTaggedService_UnknownTags(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "known"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var calls int32
	if _, err := svc.GetOrFetch(ctx, "missing", "k", counter(&calls, 1)); !IsUnknownTag(err) {
		t.Errorf("expected unknown tag error, got %v", err)
	}
	if calls != 0 {
		t.Error("fetch must not run for an unknown tag")
	}

	_, _ = svc.GetOrFetch(ctx, "known", "k", counter(&calls, 1))
	err = svc.Invalidate(ctx, "known", "ghost", "phantom")
	if !errors.IsCategory(err, errors.CategoryNotFound) {
		t.Fatalf("expected not found category, got %v", err)
	}
	var e *errors.Error
	if errors.As(err, &e) {
		if got := e.Metadata["tags"]; !reflect.DeepEqual(got, []string{"ghost", "phantom"}) {
			t.Errorf("expected unknown tags in metadata, got %v", got)
		}
	}
	if svc.Len("known") != 0 {
		t.Error("known tag must be purged even when others are unknown")
	}

	if ErrUnknownTag.Metadata != nil {
		t.Error("sentinel must not be mutated")
	}
}

func TestTaggedService_FetchErrorsKeepIdentity(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "ideas:list"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	boom := errors.New("store unavailable", errors.CategoryExternal).WithCode(503)
	got, err := svc.GetOrFetch(ctx, "ideas:list", "k", func(context.Context) (any, error) {
		return nil, boom
	})
	if got != nil {
		t.Errorf("expected nil result, got %v", got)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fetch error, got %v", err)
	}
	if !errors.IsCategory(err, errors.CategoryExternal) {
		t.Errorf("expected the external category to survive, got %v", err)
	}

	_, err = svc.GetOrFetch(ctx, "ideas:list", "cancelled", func(ctx context.Context) (any, error) {
		return nil, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if svc.Len("ideas:list") != 0 {
		t.Error("failed fetches must not be stored")
	}
}

func TestTaggedService_NilResultsAreCached(t *testing.T) {
	svc, err := NewTaggedService(testConfig(), Policy{Tag: "ideas:detail"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var calls int32
	for i := 0; i < 3; i++ {
		got, err := svc.GetOrFetch(ctx, "ideas:detail", "missing-slug", counter(&calls, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil result, got %#v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
}
