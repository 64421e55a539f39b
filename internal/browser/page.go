package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"watchalong/internal/logging"
	"watchalong/internal/session"
)

const navBuffer = 64

// Page adapts a rod page to session.Page.
type Page struct {
	page       *rod.Page
	navTimeout time.Duration

	navs   chan session.Navigation
	cancel context.CancelFunc
	once   sync.Once
}

var _ session.Page = (*Page)(nil)

func newPage(ctx context.Context, rp *rod.Page, navTimeout time.Duration) *Page {
	ctx, cancel := context.WithCancel(ctx)
	p := &Page{
		page:       rp,
		navTimeout: navTimeout,
		navs:       make(chan session.Navigation, navBuffer),
		cancel:     cancel,
	}

	wait := rp.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame.ParentID != "" || isInternalURL(ev.Frame.URL) {
			return
		}
		logging.BrowserDebug("navigated to %s", ev.Frame.URL)
		select {
		case p.navs <- session.Navigation{URL: ev.Frame.URL, At: time.Now()}:
		case <-ctx.Done():
		}
	})
	go func() {
		wait()
		close(p.navs)
	}()
	return p
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *Page) WaitFor(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}

func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type replaces the content of the input matching selector with text.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		logging.BrowserDebug("select text in %s: %v", selector, err)
	}
	return el.Input(text)
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Texts returns the text of every element currently matching selector.
func (p *Page) Texts(ctx context.Context, selector string) ([]string, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(t))
	}
	return out, nil
}

func (p *Page) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", err
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.String(), nil
}

func (p *Page) MovePointer(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.MoveTo(proto.Point{X: x, Y: y})
}

func (p *Page) PressKey(ctx context.Context, key session.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return p.page.Keyboard.Type(k)
}

func (p *Page) Navigations() <-chan session.Navigation {
	return p.navs
}

// Close stops the navigation stream and closes the tab.
func (p *Page) Close() {
	p.once.Do(func() {
		p.cancel()
		if err := p.page.Close(); err != nil {
			logging.BrowserDebug("close page: %v", err)
		}
	})
}

var keys = map[session.Key]input.Key{
	session.KeySpace:  input.Space,
	session.KeyEscape: input.Escape,
}

func isInternalURL(url string) bool {
	internalPrefixes := []string{
		"chrome://",
		"chrome-extension://",
		"devtools://",
		"about:",
		"data:",
		"blob:",
	}
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}
