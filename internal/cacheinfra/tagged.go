package cacheinfra

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// ErrUnknownTag is returned for operations on a tag that has no policy.
var ErrUnknownTag = errors.New("unknown cache tag", errors.CategoryNotFound).
	WithTextCode("CACHE_UNKNOWN_TAG")

// IsUnknownTag reports whether err is an ErrUnknownTag.
func IsUnknownTag(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.TextCode == ErrUnknownTag.TextCode
}

// Policy binds a tag to its TTL. A zero TTL uses Config.TTL.
type Policy struct {
	Tag string        `yaml:"tag"`
	TTL time.Duration `yaml:"ttl"`
}

type tagEntry struct {
	ttl    time.Duration
	client *sturdyc.Client[any]
}

// TaggedService keeps one sturdyc client per tag, so each tag expires on its own
// schedule and invalidating a tag drops exactly the entries stored under it.
type TaggedService struct {
	cfg  Config
	tags *xsync.MapOf[string, *tagEntry]
}

// NewTaggedService validates cfg and policies and creates one client per tag.
func NewTaggedService(cfg Config, policies ...Policy) (*TaggedService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &TaggedService{
		cfg:  cfg,
		tags: xsync.NewMapOf[string, *tagEntry](),
	}
	for _, p := range policies {
		if err := s.Register(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds a tag. Registering an existing tag is an error.
func (s *TaggedService) Register(p Policy) error {
	tag := strings.TrimSpace(p.Tag)
	if tag == "" {
		return &ConfigError{Field: "Policy.Tag", Message: "cannot be blank"}
	}
	if p.TTL < 0 {
		return &ConfigError{Field: "Policy.TTL", Message: msgNonNegative}
	}
	ttl := p.TTL
	if ttl == 0 {
		ttl = s.cfg.TTL
	}

	_, loaded := s.tags.LoadOrCompute(tag, func() *tagEntry {
		return &tagEntry{ttl: ttl, client: newClient(s.cfg, ttl)}
	})
	if loaded {
		return &ConfigError{Field: "Policy.Tag", Message: "duplicate tag " + tag}
	}
	return nil
}

// GetOrFetch reads key under tag, calling fetchFn on a miss.
func (s *TaggedService) GetOrFetch(ctx context.Context, tag, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	entry, ok := s.tags.Load(tag)
	if !ok {
		return nil, unknownTag(tag)
	}
	return unboxed(entry.client.GetOrFetch(ctx, key, boxed(fetchFn)))
}

// Delete removes a single entry stored under tag.
func (s *TaggedService) Delete(ctx context.Context, tag, key string) error {
	entry, ok := s.tags.Load(tag)
	if !ok {
		return unknownTag(tag)
	}
	entry.client.Delete(key)
	return nil
}

// Invalidate drops every entry stored under the given tags. Known tags are purged
// even when some tags are unknown; the error then lists the unknown ones.
func (s *TaggedService) Invalidate(ctx context.Context, tags ...string) error {
	var unknown []string
	for _, tag := range tags {
		entry, ok := s.tags.Load(tag)
		if !ok {
			unknown = append(unknown, tag)
			continue
		}
		purge(entry.client)
	}
	if len(unknown) > 0 {
		return unknownTag(unknown...)
	}
	return nil
}

// InvalidateAll drops every entry of every tag.
func (s *TaggedService) InvalidateAll(ctx context.Context) error {
	s.tags.Range(func(_ string, entry *tagEntry) bool {
		purge(entry.client)
		return true
	})
	return nil
}

// Tags lists the registered tags, sorted.
func (s *TaggedService) Tags() []string {
	out := make([]string, 0, s.tags.Size())
	s.tags.Range(func(tag string, _ *tagEntry) bool {
		out = append(out, tag)
		return true
	})
	sort.Strings(out)
	return out
}

// TTL returns the TTL of tag.
func (s *TaggedService) TTL(tag string) (time.Duration, bool) {
	entry, ok := s.tags.Load(tag)
	if !ok {
		return 0, false
	}
	return entry.ttl, true
}

// Len returns the number of entries held under tag.
func (s *TaggedService) Len(tag string) int {
	return len(s.tagKeys(tag))
}

func (s *TaggedService) tagKeys(tag string) []string {
	entry, ok := s.tags.Load(tag)
	if !ok {
		return nil
	}
	return entry.client.ScanKeys()
}

func purge(client *sturdyc.Client[any]) {
	for _, key := range client.ScanKeys() {
		client.Delete(key)
	}
}

func unknownTag(tags ...string) error {
	return ErrUnknownTag.Clone().WithMetadata(map[string]any{"tags": tags})
}
