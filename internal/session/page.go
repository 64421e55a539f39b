package session

import (
	"context"
	"time"
)

// Key names a keyboard key understood by the page.
type Key string

const (
	KeySpace  Key = "Space"
	KeyEscape Key = "Escape"
)

// Navigation reports that the page's main frame committed a new URL.
type Navigation struct {
	URL string
	At  time.Time
}

// Page is the browser capability the controller drives. Implementations must
// honour ctx on every blocking call; the controller bounds element waits
// with its own deadlines.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Has reports whether selector currently matches, without waiting.
	Has(ctx context.Context, selector string) (bool, error)
	// WaitFor blocks until selector matches or ctx ends.
	WaitFor(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	// Eval runs a JS function expression in the page and returns its result as a string.
	Eval(ctx context.Context, js string, args ...any) (string, error)
	MovePointer(ctx context.Context, x, y float64) error
	PressKey(ctx context.Context, key Key) error
	// Navigations streams main-frame navigations in the order the page reports them.
	Navigations() <-chan Navigation
}
