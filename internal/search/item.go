// Package search holds catalog search results and the per-user cache that
// lets a search be paged through and played from across separate messages.
package search

import (
	"errors"
	"strings"
)

var (
	// ErrNoSearch is returned when the user has no recorded search.
	ErrNoSearch = errors.New("no previous search")
	// ErrNotFound is returned when a selection falls outside the results.
	ErrNotFound = errors.New("no such result")
)

// Item is one catalog search result. Items are immutable once produced.
type Item struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// URL resolves the item's path against base.
func (i Item) URL(base string) string {
	if strings.HasPrefix(i.Path, "http://") || strings.HasPrefix(i.Path, "https://") {
		return i.Path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(i.Path, "/")
}
