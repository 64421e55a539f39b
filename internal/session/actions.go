package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"watchalong/internal/logging"
	"watchalong/internal/search"
)

// TrackKind selects the audio or subtitle list of the playback overlay.
type TrackKind int

const (
	AudioTrack TrackKind = iota
	SubtitleTrack
)

func (k TrackKind) String() string {
	if k == SubtitleTrack {
		return "subtitle"
	}
	return "audio"
}

// Tracks lists the display names of the current item's tracks.
type Tracks struct {
	Audio     []string
	Subtitles []string
}

// Credentials are submitted on the login page.
type Credentials struct {
	Email    string
	Password string
}

// =============================================================================
// SESSION ACTIONS
// =============================================================================

// Login submits credentials and waits until the session lands on the browse
// page. The profile gate check that follows is queued behind Login and
// publishes EventLogin plus, when a profile picker is shown,
// EventShowProfileSelection.
func (c *Controller) Login(ctx context.Context, creds Credentials) error {
	return c.queue.do(ctx, "login", func(ctx context.Context) error {
		// A browse landing that arrived after an earlier attempt timed out
		// already logged the session in.
		if st := c.State(); st.Phase != Unauthenticated {
			logging.Session("already logged in (%s)", st)
			return nil
		}
		sel := c.selectors.Selectors()

		landed := c.awaitBrowse()
		if err := c.navigate(ctx, c.opts.LoginURL()); err != nil {
			return err
		}
		if err := c.waitFor(ctx, sel.LoginEmail); err != nil {
			// A still-valid session cookie redirects the login page to browse.
			select {
			case <-landed:
				logging.Session("session cookie still valid, skipping credentials")
				return nil
			default:
				return err
			}
		}
		if err := c.typeInto(ctx, sel.LoginEmail, creds.Email); err != nil {
			return err
		}
		if err := c.typeInto(ctx, sel.LoginPassword, creds.Password); err != nil {
			return err
		}
		if err := c.click(ctx, sel.LoginSubmit); err != nil {
			return err
		}

		timer, cancel := context.WithTimeout(ctx, c.opts.NavigationTimeout)
		defer cancel()
		select {
		case <-landed:
			logging.Session("login landed on browse page")
			return nil
		case <-timer.Done():
			return fmt.Errorf("%w: browse page not reached after login: %w", ErrNavigationFailure, timer.Err())
		}
	})
}

// SelectFirstProfile picks the first profile on the profile picker. It does
// not retry; callers wrap it in a retry policy when the picker is slow.
func (c *Controller) SelectFirstProfile(ctx context.Context) error {
	return c.queue.do(ctx, "select-profile", func(ctx context.Context) error {
		if c.State().Phase == Unauthenticated {
			return fmt.Errorf("%w: not logged in", ErrInvalidState)
		}
		sel := c.selectors.Selectors()
		if err := c.waitFor(ctx, sel.ProfileGate); err != nil {
			return err
		}
		found, err := c.page.Has(ctx, sel.ProfileEntry)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrElementNotFound, sel.ProfileEntry)
		}
		if err := c.click(ctx, sel.ProfileEntry); err != nil {
			return err
		}

		c.setState(browsing())
		c.emit(EventProfileSelected, c.currentURL())
		return nil
	})
}

// Search runs query through the site's search box and returns the results in
// page order.
func (c *Controller) Search(ctx context.Context, query string) ([]search.Item, error) {
	var items []search.Item
	err := c.queue.do(ctx, "search", func(ctx context.Context) error {
		if c.State().Phase == Unauthenticated {
			return fmt.Errorf("%w: not logged in", ErrInvalidState)
		}
		sel := c.selectors.Selectors()

		if err := c.click(ctx, sel.SearchButton); err != nil {
			return err
		}
		if err := c.typeInto(ctx, sel.SearchInput, query); err != nil {
			return err
		}
		if err := c.waitFor(ctx, sel.SearchResults); err != nil {
			return err
		}

		fragment, err := c.page.Eval(ctx, outerHTMLScript, sel.SearchResults)
		if err != nil {
			return fmt.Errorf("read search results: %w", err)
		}
		items, err = extractItems(fragment, sel, c.opts.RequireThumbnail)
		if err != nil {
			return err
		}
		logging.Session("search %q returned %d items", query, len(items))
		return nil
	})
	return items, err
}

// Play navigates to item and records it as playing. Reaching the player is
// assumed once navigation succeeds.
func (c *Controller) Play(ctx context.Context, item search.Item) error {
	return c.queue.do(ctx, "play", func(ctx context.Context) error {
		switch c.State().Phase {
		case Browsing, Playing:
		default:
			return fmt.Errorf("%w: cannot play while %s", ErrInvalidState, c.State())
		}
		if err := c.navigate(ctx, item.URL(c.opts.BaseURL)); err != nil {
			return err
		}
		c.setState(playing(item))
		c.emit(EventPlaybackStarted, c.currentURL())
		return nil
	})
}

// GoHome navigates to the browse page and clears the playing item whether
// or not the navigation succeeded.
func (c *Controller) GoHome(ctx context.Context) error {
	return c.queue.do(ctx, "home", func(ctx context.Context) error {
		navErr := c.navigate(ctx, c.opts.BrowseURL())

		c.mu.Lock()
		wasPlaying := c.state.Phase == Playing
		if wasPlaying {
			c.state = browsing()
		}
		c.mu.Unlock()
		if wasPlaying {
			c.emit(EventPlaybackStopped, c.opts.BrowseURL())
		}
		return navErr
	})
}

// ToggleSpace presses space on the player. Nothing is sent when idle.
func (c *Controller) ToggleSpace(ctx context.Context) error {
	return c.queue.do(ctx, "toggle-space", func(ctx context.Context) error {
		if _, ok := c.Current(); !ok {
			return ErrNothingPlaying
		}
		return c.page.PressKey(ctx, KeySpace)
	})
}

// AvailableTracks opens the audio/subtitle overlay and lists both track lists.
func (c *Controller) AvailableTracks(ctx context.Context) (Tracks, error) {
	var tracks Tracks
	err := c.queue.do(ctx, "list-tracks", func(ctx context.Context) (err error) {
		if _, ok := c.Current(); !ok {
			return ErrNothingPlaying
		}
		defer c.restorePointer(ctx)
		defer logFailure("list tracks", &err)

		sel := c.selectors.Selectors()
		if err := c.openTrackOverlay(ctx, sel); err != nil {
			return err
		}
		if tracks.Audio, err = c.page.Texts(ctx, sel.AudioTrack); err != nil {
			return fmt.Errorf("read audio tracks: %w", err)
		}
		if tracks.Subtitles, err = c.page.Texts(ctx, sel.SubtitleTrack); err != nil {
			return fmt.Errorf("read subtitle tracks: %w", err)
		}
		return nil
	})
	return tracks, err
}

// SetTrack selects the n-th (1-indexed) track of kind and returns its name.
func (c *Controller) SetTrack(ctx context.Context, kind TrackKind, n int) (string, error) {
	var name string
	err := c.queue.do(ctx, "set-"+kind.String(), func(ctx context.Context) (err error) {
		if _, ok := c.Current(); !ok {
			return ErrNothingPlaying
		}
		if n < 1 {
			return fmt.Errorf("%w: %s track %d", ErrElementNotFound, kind, n)
		}
		defer c.restorePointer(ctx)
		defer logFailure("set "+kind.String()+" track", &err)

		sel := c.selectors.Selectors()
		if err := c.openTrackOverlay(ctx, sel); err != nil {
			return err
		}

		list := sel.AudioTrack
		if kind == SubtitleTrack {
			list = sel.SubtitleTrack
		}
		names, err := c.page.Texts(ctx, list)
		if err != nil {
			return fmt.Errorf("read %s tracks: %w", kind, err)
		}
		if n > len(names) {
			return fmt.Errorf("%w: %s track %d of %d", ErrElementNotFound, kind, n, len(names))
		}
		entry := nth(list, n)
		if err := c.waitFor(ctx, entry); err != nil {
			return err
		}
		if name, err = c.page.Text(ctx, entry); err != nil {
			return fmt.Errorf("read %s track %d: %w", kind, n, err)
		}
		return c.click(ctx, entry)
	})
	return name, err
}

// =============================================================================
// PAGE HELPERS
// =============================================================================

// openTrackOverlay wiggles the pointer to surface the auto-hiding player
// controls, then opens the audio/subtitle menu.
func (c *Controller) openTrackOverlay(ctx context.Context, sel Selectors) error {
	x := rand.Float64() * float64(c.opts.ViewportWidth)
	y := rand.Float64() * float64(c.opts.ViewportHeight)
	if err := c.page.MovePointer(ctx, x, y); err != nil {
		return fmt.Errorf("reveal controls: %w", err)
	}
	return c.click(ctx, sel.AudioSubtitleButton)
}

func (c *Controller) restorePointer(ctx context.Context) {
	if err := c.page.MovePointer(context.WithoutCancel(ctx), c.opts.PointerOriginX, c.opts.PointerOriginY); err != nil {
		logging.Get(logging.CategorySession).Warn("restore pointer: %v", err)
	}
}

func (c *Controller) navigate(ctx context.Context, url string) error {
	if err := c.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigationFailure, url, err)
	}
	return nil
}

func (c *Controller) waitFor(ctx context.Context, selector string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ElementTimeout)
	defer cancel()
	return elementErr(selector, c.page.WaitFor(ctx, selector))
}

func (c *Controller) click(ctx context.Context, selector string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ElementTimeout)
	defer cancel()
	return elementErr(selector, c.page.Click(ctx, selector))
}

func (c *Controller) typeInto(ctx context.Context, selector, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ElementTimeout)
	defer cancel()
	return elementErr(selector, c.page.Type(ctx, selector, text))
}

// elementErr folds timeouts waiting for selector into ErrElementNotFound.
func elementErr(selector string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrElementNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	default:
		return fmt.Errorf("%s: %w", selector, err)
	}
}

func logFailure(what string, err *error) {
	if *err != nil {
		logging.SessionError("%s failed: %v", what, *err)
	}
}
