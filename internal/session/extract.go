package session

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"watchalong/internal/search"
)

// outerHTMLScript returns the outer HTML of the first element matching its argument.
const outerHTMLScript = `(sel) => {
	const el = document.querySelector(sel);
	return el ? el.outerHTML : "";
}`

// extractItems reads search results out of the results surface markup.
// Entries without a path or title, or without a thumbnail when
// requireThumbnail is set, are skipped.
func extractItems(fragment string, sel Selectors, requireThumbnail bool) ([]search.Item, error) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	items := []search.Item{}
	doc.Find(sel.ResultItem).Each(func(_ int, s *goquery.Selection) {
		link := s
		if !s.Is("a[href]") {
			link = s.Find("a[href]").First()
		}
		path := strings.TrimSpace(link.AttrOr("href", ""))

		img := s.Find(sel.ResultThumbnail).First()
		thumb := strings.TrimSpace(img.AttrOr("src", ""))

		title := strings.TrimSpace(link.AttrOr("aria-label", ""))
		if title == "" {
			title = strings.TrimSpace(img.AttrOr("alt", ""))
		}
		if title == "" {
			title = strings.Join(strings.Fields(s.Text()), " ")
		}

		if path == "" || title == "" || (requireThumbnail && thumb == "") {
			return
		}
		items = append(items, search.Item{Path: path, Title: title, Thumbnail: thumb})
	})
	return items, nil
}
