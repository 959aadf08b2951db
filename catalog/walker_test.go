package catalog

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections to httptest servers wind down asynchronously
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// chain serves pages from a fixed list; past the end it keeps returning empty pages
// with a cursor when endless is set.
type chain struct {
	mu      sync.Mutex
	pages   []Page
	endless bool
	err     error
	errAt   int
	cursors []string
}

func (c *chain) fetch(ctx context.Context, cursor string) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors = append(c.cursors, cursor)
	n := len(c.cursors) - 1
	if c.err != nil && n == c.errAt {
		return Page{}, c.err
	}
	if n < len(c.pages) {
		return c.pages[n], nil
	}
	if c.endless {
		return Page{Cursor: "next-" + strconv.Itoa(n+1)}, nil
	}
	return Page{}, nil
}

func (c *chain) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cursors)
}

func recs(ids ...string) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, Record{ID: id, Title: id})
	}
	return out
}

func TestWalker_FollowsCursorsUntilAbsent(t *testing.T) {
	c := &chain{pages: []Page{
		{Items: recs("a", "b"), Cursor: "c1"},
		{Items: nil, Cursor: "c2"},
		{Items: recs("c")},
	}}

	got, err := Walker{Fetch: c.fetch, MaxPages: 10}.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs("a", "b", "c"), got)
	assert.Equal(t, []string{"", "c1", "c2"}, c.cursors)
}

func TestWalker_BoundsEndlessChains(t *testing.T) {
	for _, max := range []int{1, 3, 17} {
		c := &chain{endless: true}
		n, err := Walker{Fetch: c.fetch, MaxPages: max}.Walk(context.Background(), func(Page) bool { return true })
		require.NoError(t, err)
		assert.Equal(t, max, n)
		assert.Equal(t, max, c.calls())
	}
}

func TestWalker_DefaultBound(t *testing.T) {
	c := &chain{endless: true}
	_, err := Walker{Fetch: c.fetch}.Walk(context.Background(), func(Page) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPages, c.calls())
}

func TestWalker_StopsWhenCallbackDeclines(t *testing.T) {
	c := &chain{endless: true, pages: []Page{{Items: recs("a"), Cursor: "c1"}, {Items: recs("b"), Cursor: "c2"}}}
	n, err := Walker{Fetch: c.fetch, MaxPages: 10}.Walk(context.Background(), func(p Page) bool {
		return len(p.Items) == 0 || p.Items[0].ID != "b"
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWalker_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	c := &chain{endless: true, err: boom, errAt: 2}
	n, err := Walker{Fetch: c.fetch, MaxPages: 10}.Walk(context.Background(), func(Page) bool { return true })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)

	got, err := Walker{Fetch: (&chain{endless: true, err: boom}).fetch}.Collect(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestWalker_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &chain{endless: true}
	n, err := Walker{Fetch: c.fetch, MaxPages: 10}.Walk(ctx, func(Page) bool {
		cancel()
		return true
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestWalker_ConcurrentWalksShareNothing(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &chain{pages: []Page{{Items: recs("a"), Cursor: "x"}, {Items: recs("b")}}}
			got, err := Walker{Fetch: c.fetch}.Collect(context.Background())
			assert.NoError(t, err)
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()
}
