package search

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPageSize is the number of results rendered per page.
const DefaultPageSize = 10

// MessageRef identifies the chat message a search was rendered into, so
// later page requests can edit it in place.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Entry is one user's most recent search.
type Entry struct {
	UserID    string
	Message   MessageRef
	Items     []Item
	UpdatedAt time.Time
}

// Page is a window onto an entry's results.
type Page struct {
	Number int
	Total  int
	// Offset is the 0-based index of Items[0] within the whole result set.
	Offset int
	Items  []Item
}

// Persister stores entries beyond the life of the process.
type Persister interface {
	SaveEntry(ctx context.Context, e Entry) error
	LoadEntries(ctx context.Context) ([]Entry, error)
}

// Cache maps each user to their latest search. A new search replaces the
// previous entry; entries never expire.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	persist Persister
	now     func() time.Time
}

// NewCache creates a cache. p may be nil for a memory-only cache.
func NewCache(p Persister) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		persist: p,
		now:     time.Now,
	}
}

// Restore loads persisted entries. Entries already recorded in memory win.
func (c *Cache) Restore(ctx context.Context) (int, error) {
	if c.persist == nil {
		return 0, nil
	}
	entries, err := c.persist.LoadEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore search cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range entries {
		if _, ok := c.entries[e.UserID]; ok {
			continue
		}
		c.entries[e.UserID] = e
		n++
	}
	return n, nil
}

// Record replaces userID's entry. The in-memory entry is updated even when
// persisting fails; the persistence error is still returned.
func (c *Cache) Record(ctx context.Context, userID string, msg MessageRef, items []Item) error {
	e := Entry{
		UserID:    userID,
		Message:   msg,
		Items:     append([]Item(nil), items...),
		UpdatedAt: c.now(),
	}

	c.mu.Lock()
	c.entries[userID] = e
	c.mu.Unlock()

	if c.persist != nil {
		if err := c.persist.SaveEntry(ctx, e); err != nil {
			return fmt.Errorf("persist search for %s: %w", userID, err)
		}
	}
	return nil
}

// Entry returns a copy of userID's entry.
func (c *Cache) Entry(userID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	if !ok {
		return Entry{}, false
	}
	e.Items = append([]Item(nil), e.Items...)
	return e, true
}

// Page returns the 1-indexed page of userID's results. Pages outside
// [1, Total] come back empty rather than as an error.
func (c *Cache) Page(userID string, number, size int) (Page, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return Page{}, ErrNoSearch
	}
	return paginate(e.Items, number, size), nil
}

// Resolve returns the item at the 1-indexed position across the whole result
// set, independent of the page last shown.
func (c *Cache) Resolve(userID string, position int) (Item, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return Item{}, ErrNoSearch
	}
	if position < 1 || position > len(e.Items) {
		return Item{}, fmt.Errorf("%w: %d of %d", ErrNotFound, position, len(e.Items))
	}
	return e.Items[position-1], nil
}

// TotalPages is ceil(count/size).
func TotalPages(count, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return (count + size - 1) / size
}

func paginate(items []Item, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	p := Page{Number: number, Total: TotalPages(len(items), size), Items: []Item{}}
	if number < 1 || number > p.Total {
		return p
	}
	start := (number - 1) * size
	end := min(start+size, len(items))
	p.Offset = start
	p.Items = append(p.Items, items[start:end]...)
	return p
}
