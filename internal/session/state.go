package session

import (
	"errors"
	"fmt"

	"watchalong/internal/search"
)

var (
	// ErrElementNotFound is returned when a required control never appeared.
	ErrElementNotFound = errors.New("element not found")
	// ErrNothingPlaying is returned by playback actions while nothing plays.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrNavigationFailure wraps failures of the page's navigation.
	ErrNavigationFailure = errors.New("navigation failed")
	// ErrInvalidState is returned when an action is illegal in the current state.
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrClosed is returned once the controller has shut down.
	ErrClosed = errors.New("session closed")
)

// Phase is the coarse lifecycle position of the session.
type Phase int

const (
	Unauthenticated Phase = iota
	AwaitingProfileSelection
	Browsing
	Playing
)

func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingProfileSelection:
		return "awaiting_profile_selection"
	case Browsing:
		return "browsing"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the session's tagged state. Item is set only in Playing.
type State struct {
	Phase Phase
	Item  *search.Item
}

func unauthenticated() State { return State{Phase: Unauthenticated} }
func awaitingProfile() State { return State{Phase: AwaitingProfileSelection} }
func browsing() State { return State{Phase: Browsing} }
func playing(item search.Item) State { return State{Phase: Playing, Item: &item} }

// Playing returns the item being played.
func (s State) Playing() (search.Item, bool) {
	if s.Phase != Playing || s.Item == nil {
		return search.Item{}, false
	}
	return *s.Item, true
}

func (s State) String() string {
	if item, ok := s.Playing(); ok {
		return fmt.Sprintf("playing(%s)", item.Title)
	}
	return s.Phase.String()
}
