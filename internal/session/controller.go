// Package session drives the single logged-in browser session: it owns the
// page, tracks the session state derived from navigation and action
// outcomes, and publishes lifecycle events.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"watchalong/internal/events"
	"watchalong/internal/logging"
	"watchalong/internal/search"
)

// Lifecycle event names.
const (
	EventLogin                = "login"
	EventShowProfileSelection = "showProfileSelection"
	EventProfileSelected      = "profileSelected"
	EventNavigated            = "navigated"
	EventPlaybackStarted      = "playbackStarted"
	EventPlaybackStopped      = "playbackStopped"
)

// Event is the payload of every lifecycle event.
type Event struct {
	Name  string
	URL   string
	Item  *search.Item
	State State
	At    time.Time
}

// Options configures a Controller.
type Options struct {
	BaseURL    string
	LoginPath  string
	BrowsePath string

	// ElementTimeout bounds every wait for a control to appear.
	ElementTimeout time.Duration
	// NavigationTimeout bounds the wait for login to land on the browse page.
	NavigationTimeout time.Duration

	ViewportWidth  int
	ViewportHeight int
	// PointerOriginX/Y is where the pointer is parked after revealing controls.
	PointerOriginX float64
	PointerOriginY float64

	// RequireThumbnail drops search results without a thumbnail.
	RequireThumbnail bool
}

// DefaultOptions returns options for the default site.
func DefaultOptions() Options {
	return Options{
		BaseURL:           "https://www.netflix.com",
		LoginPath:         "/login",
		BrowsePath:        "/browse",
		ElementTimeout:    10 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ViewportWidth:     1280,
		ViewportHeight:    720,
	}
}

func (o Options) url(path string) string {
	return strings.TrimRight(o.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// LoginURL is the page credentials are submitted on.
func (o Options) LoginURL() string { return o.url(o.LoginPath) }

// BrowseURL is the home page of a logged-in session.
func (o Options) BrowseURL() string { return o.url(o.BrowsePath) }

// Controller is the sole owner of the session's page.
type Controller struct {
	page      Page
	selectors SelectorSource
	opts      Options

	bus    *events.Bus[Event]
	queue  *actionQueue
	routes map[string]func(Navigation)

	mu          sync.RWMutex
	state       State
	lastURL     string
	browseWaits []chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	navWG  sync.WaitGroup
}

// New creates a controller and starts observing the page's navigation
// stream. The session starts Unauthenticated.
func New(page Page, selectors SelectorSource, opts Options) *Controller {
	def := DefaultOptions()
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = def.ElementTimeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		page:      page,
		selectors: selectors,
		opts:      opts,
		bus:       events.New[Event](),
		queue:     newActionQueue(),
		state:     unauthenticated(),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.routes = map[string]func(Navigation){
		opts.BrowseURL(): c.onBrowse,
	}

	c.navWG.Add(1)
	go c.watchNavigation()
	return c
}

// Subscribe registers h for the named lifecycle event. Handlers run
// synchronously on the goroutine that emits, which may be the action queue,
// so a handler that calls back into the controller must do so from its own
// goroutine.
func (c *Controller) Subscribe(name string, h events.Handler[Event]) {
	c.bus.Subscribe(name, h)
}

// State returns a snapshot of the session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	if st.Item != nil {
		item := *st.Item
		st.Item = &item
	}
	return st
}

// Current returns the item being played, if any.
func (c *Controller) Current() (search.Item, bool) {
	return c.State().Playing()
}

// Close stops navigation tracking, fails queued actions and drops
// lifecycle subscribers.
func (c *Controller) Close() {
	c.cancel()
	c.queue.stop()
	c.navWG.Wait()
	c.bus.Close()
}

func (c *Controller) emit(name, url string) {
	st := c.State()
	ev := Event{Name: name, URL: url, State: st, At: time.Now()}
	if item, ok := st.Playing(); ok {
		ev.Item = &item
	}
	logging.SessionDebug("event %s (%s)", name, st)
	c.bus.Emit(name, ev)
}

func (c *Controller) setState(s State) State {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev.String() != s.String() {
		logging.Session("state %s -> %s", prev, s)
	}
	return prev
}

// =============================================================================
// NAVIGATION TRACKING
// =============================================================================

func (c *Controller) watchNavigation() {
	defer c.navWG.Done()
	navs := c.page.Navigations()
	for {
		select {
		case <-c.ctx.Done():
			return
		case nav, ok := <-navs:
			if !ok {
				logging.SessionDebug("navigation stream closed")
				return
			}
			c.handleNavigation(nav)
		}
	}
}

func (c *Controller) handleNavigation(nav Navigation) {
	c.mu.Lock()
	c.lastURL = nav.URL
	c.mu.Unlock()

	c.emit(EventNavigated, nav.URL)

	route, ok := c.routes[nav.URL]
	if !ok {
		return
	}
	route(nav)
}

// onBrowse runs when the page lands on the browse page. Playback ends here,
// pending logins are released, and the profile gate check is queued behind
// whatever action is in flight.
func (c *Controller) onBrowse(nav Navigation) {
	c.mu.Lock()
	waits := c.browseWaits
	c.browseWaits = nil
	wasPlaying := c.state.Phase == Playing
	if wasPlaying {
		c.state = browsing()
	}
	c.mu.Unlock()

	// Queue the gate check before releasing waiters so anything they
	// submit next sees the inspected state.
	c.queue.submit(c.ctx, "inspect-browse", func(ctx context.Context) error {
		return c.inspectBrowse(ctx, nav.URL)
	})
	for _, w := range waits {
		close(w)
	}
	if wasPlaying {
		logging.Session("returned to browse, playback cleared")
		c.emit(EventPlaybackStopped, nav.URL)
	}
}

func (c *Controller) inspectBrowse(ctx context.Context, url string) error {
	sel := c.selectors.Selectors()
	gated, err := c.page.Has(ctx, sel.ProfileGate)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("profile gate check failed: %v", err)
		return err
	}

	prev := c.State()
	switch {
	case gated:
		c.setState(awaitingProfile())
		if prev.Phase == Unauthenticated {
			c.emit(EventLogin, url)
		}
		c.emit(EventShowProfileSelection, url)
	case prev.Phase == Unauthenticated || prev.Phase == AwaitingProfileSelection:
		c.setState(browsing())
		if prev.Phase == Unauthenticated {
			c.emit(EventLogin, url)
		}
	}
	return nil
}

// awaitBrowse returns a channel closed on the next browse navigation.
func (c *Controller) awaitBrowse() <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.browseWaits = append(c.browseWaits, ch)
	c.mu.Unlock()
	return ch
}

func (c *Controller) currentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastURL
}
