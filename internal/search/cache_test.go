package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Path: fmt.Sprintf("/watch/%d", i+1), Title: fmt.Sprintf("Title %d", i+1)}
	}
	return items
}

var msg = MessageRef{ChannelID: "c1", MessageID: "m1"}

func TestPage_FirstPageInOrder(t *testing.T) {
	for _, n := range []int{1, 5, 10, 12, 25} {
		for _, size := range []int{1, 3, 10} {
			c := NewCache(nil)
			items := makeItems(n)
			require.NoError(t, c.Record(context.Background(), "u", msg, items))

			p, err := c.Page("u", 1, size)
			require.NoError(t, err)

			want := items[:min(size, n)]
			if diff := cmp.Diff(want, p.Items); diff != "" {
				t.Errorf("n=%d size=%d page 1 mismatch (-want +got):\n%s", n, size, diff)
			}
		}
	}
}

func TestPage_TwelveItemsPageSizeTen(t *testing.T) {
	c := NewCache(nil)
	items := makeItems(12)
	require.NoError(t, c.Record(context.Background(), "u", msg, items))

	p1, err := c.Page("u", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, p1.Total)
	assert.Equal(t, 0, p1.Offset)
	assert.Equal(t, items[:10], p1.Items)

	p2, err := c.Page("u", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, p2.Offset)
	assert.Equal(t, items[10:], p2.Items)
}

func TestPage_OutOfRangeIsEmpty(t *testing.T) {
	c := NewCache(nil)
	require.NoError(t, c.Record(context.Background(), "u", msg, makeItems(12)))

	for _, n := range []int{-1, 0, 3, 100} {
		p, err := c.Page("u", n, 10)
		require.NoError(t, err, "page %d", n)
		assert.NotNil(t, p.Items)
		assert.Empty(t, p.Items, "page %d", n)
		assert.Equal(t, 2, p.Total)
	}
}

func TestPage_NoSearch(t *testing.T) {
	c := NewCache(nil)
	_, err := c.Page("nobody", 1, 10)
	assert.ErrorIs(t, err, ErrNoSearch)
}

func TestResolve_AcrossWholeResultSet(t *testing.T) {
	c := NewCache(nil)
	items := makeItems(12)
	require.NoError(t, c.Record(context.Background(), "u", msg, items))

	// Looking at page 1 must not restrict selection to it.
	_, err := c.Page("u", 1, 10)
	require.NoError(t, err)

	for k := 1; k <= len(items); k++ {
		got, err := c.Resolve("u", k)
		require.NoError(t, err)
		assert.Equal(t, items[k-1], got)
	}

	for _, k := range []int{0, -3, 13} {
		_, err := c.Resolve("u", k)
		assert.ErrorIs(t, err, ErrNotFound, "position %d", k)
	}
}

func TestRecord_ReplacesPriorEntry(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, "u", msg, makeItems(12)))

	second := []Item{{Path: "/watch/99", Title: "Other"}}
	require.NoError(t, c.Record(ctx, "u", MessageRef{ChannelID: "c1", MessageID: "m2"}, second))

	e, ok := c.Entry("u")
	require.True(t, ok)
	assert.Equal(t, "m2", e.Message.MessageID)
	assert.Equal(t, second, e.Items)

	_, err := c.Resolve("u", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_UsersAreIndependent(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, "alice", msg, makeItems(3)))
	require.NoError(t, c.Record(ctx, "bob", msg, makeItems(1)))

	got, err := c.Resolve("alice", 3)
	require.NoError(t, err)
	assert.Equal(t, "/watch/3", got.Path)

	_, err = c.Resolve("bob", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_CopiesItems(t *testing.T) {
	c := NewCache(nil)
	items := makeItems(2)
	require.NoError(t, c.Record(context.Background(), "u", msg, items))
	items[0].Title = "mutated"

	got, err := c.Resolve("u", 1)
	require.NoError(t, err)
	assert.Equal(t, "Title 1", got.Title)
}

type memPersister struct {
	saved   []Entry
	saveErr error
	loaded  []Entry
}

func (m *memPersister) SaveEntry(_ context.Context, e Entry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, e)
	return nil
}

func (m *memPersister) LoadEntries(context.Context) ([]Entry, error) {
	return m.loaded, nil
}

func TestRecord_PersistsAndRestores(t *testing.T) {
	p := &memPersister{}
	c := NewCache(p)
	require.NoError(t, c.Record(context.Background(), "u", msg, makeItems(2)))
	require.Len(t, p.saved, 1)
	assert.Equal(t, "u", p.saved[0].UserID)

	restored := NewCache(&memPersister{loaded: p.saved})
	n, err := restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restored.Resolve("u", 2)
	require.NoError(t, err)
	assert.Equal(t, "/watch/2", got.Path)
}

func TestRecord_PersistFailureKeepsMemoryEntry(t *testing.T) {
	c := NewCache(&memPersister{saveErr: errors.New("disk full")})
	err := c.Record(context.Background(), "u", msg, makeItems(1))
	require.Error(t, err)

	_, err = c.Resolve("u", 1)
	assert.NoError(t, err)
}

func TestItemURL(t *testing.T) {
	assert.Equal(t, "https://site.test/watch/1", Item{Path: "/watch/1"}.URL("https://site.test/"))
	assert.Equal(t, "https://site.test/watch/1", Item{Path: "watch/1"}.URL("https://site.test"))
	assert.Equal(t, "https://cdn.test/x", Item{Path: "https://cdn.test/x"}.URL("https://site.test"))
}
