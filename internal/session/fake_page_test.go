package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakePage is an in-memory Page. Selectors listed in present match; clicks
// on selectors in clickNav trigger a navigation.
type fakePage struct {
	mu sync.Mutex

	present   map[string]bool
	text      map[string]string
	texts     map[string][]string
	clickNav  map[string]string
	redirects map[string]string
	evalOut   string
	navErr    error

	navigated []string
	clicks    []string
	typed     map[string]string
	keys      []Key
	moves     [][2]float64

	navs chan Navigation
}

func newFakePage() *fakePage {
	return &fakePage{
		present:   make(map[string]bool),
		text:      make(map[string]string),
		texts:     make(map[string][]string),
		clickNav:  make(map[string]string),
		redirects: make(map[string]string),
		typed:     make(map[string]string),
		navs:      make(chan Navigation, 32),
	}
}

func (p *fakePage) set(selector string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = on
}

func (p *fakePage) has(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector]
}

func (p *fakePage) emitNav(url string) {
	p.navs <- Navigation{URL: url, At: time.Now()}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	err := p.navErr
	target := url
	if to, ok := p.redirects[url]; ok {
		target = to
	}
	p.navigated = append(p.navigated, url)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.emitNav(target)
	return nil
}

func (p *fakePage) Has(ctx context.Context, selector string) (bool, error) {
	return p.has(selector), nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string) error {
	if p.has(selector) {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if err := p.WaitFor(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	nav, ok := p.clickNav[selector]
	p.mu.Unlock()
	if ok {
		p.emitNav(nav)
	}
	return nil
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	if err := p.WaitFor(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = text
	return nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.text[selector]
	if !ok {
		return "", fmt.Errorf("no text for %s", selector)
	}
	return t, nil
}

func (p *fakePage) Texts(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts[selector]...), nil
}

func (p *fakePage) Eval(ctx context.Context, js string, args ...any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.Contains(js, "outerHTML") {
		return "", fmt.Errorf("unexpected script")
	}
	return p.evalOut, nil
}

func (p *fakePage) MovePointer(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = append(p.moves, [2]float64{x, y})
	return nil
}

func (p *fakePage) PressKey(ctx context.Context, key Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePage) Navigations() <-chan Navigation { return p.navs }

// tracks sets the overlay's track names for list selector.
func (p *fakePage) tracks(list string, names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[list] = names
	for i, n := range names {
		p.present[nth(list, i+1)] = true
		p.text[nth(list, i+1)] = n
	}
}

func (p *fakePage) pressed() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Key(nil), p.keys...)
}

func (p *fakePage) lastMove() [2]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.moves) == 0 {
		return [2]float64{-1, -1}
	}
	return p.moves[len(p.moves)-1]
}
