// Package bot wires chat commands to the browser session: it owns the
// command table, the per-user search cache and the voice relay, and turns
// every outcome into a single chat reply.
package bot

import (
	"context"
	"fmt"
	"sync"

	"watchalong/internal/commands"
	"watchalong/internal/events"
	"watchalong/internal/logging"
	"watchalong/internal/media"
	"watchalong/internal/retry"
	"watchalong/internal/search"
	"watchalong/internal/session"
)

// Session is the part of session.Controller the bot drives.
type Session interface {
	Login(ctx context.Context, creds session.Credentials) error
	SelectFirstProfile(ctx context.Context) error
	Search(ctx context.Context, query string) ([]search.Item, error)
	Play(ctx context.Context, item search.Item) error
	GoHome(ctx context.Context) error
	ToggleSpace(ctx context.Context) error
	AvailableTracks(ctx context.Context) (session.Tracks, error)
	SetTrack(ctx context.Context, kind session.TrackKind, n int) (string, error)
	Current() (search.Item, bool)
	Subscribe(name string, h events.Handler[session.Event])
}

var _ Session = (*session.Controller)(nil)

// Messenger posts and edits chat messages.
type Messenger interface {
	Send(ctx context.Context, channelID, content string) (string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
}

// Voice finds and joins voice channels.
type Voice interface {
	VoiceChannelOf(guildID, userID string) (string, error)
	JoinVoice(ctx context.Context, guildID, channelID string) (media.Sink, error)
}

// Deps are the collaborators a Bot needs. Voice, Relay and Source may be
// nil, in which case the stream commands report that streaming is not
// configured.
type Deps struct {
	Session   Session
	Messenger Messenger
	Voice     Voice
	Relay     media.Pipeline
	Source    media.Source
	Cache     *search.Cache
}

// Options tunes the bot.
type Options struct {
	Prefix   string
	PageSize int
	Retry    retry.Policy
	// AutoSelectProfile picks the first profile whenever the profile gate
	// shows up.
	AutoSelectProfile bool
}

// Bot is the command orchestrator.
type Bot struct {
	session Session
	msgr    Messenger
	voice   Voice
	relay   media.Pipeline
	source  media.Source
	cache   *search.Cache

	opts   Options
	router *commands.Router

	mu         sync.Mutex
	closed     bool
	recovering bool
	wg         sync.WaitGroup
}

// New builds a bot and registers its command table.
func New(deps Deps, opts Options) (*Bot, error) {
	if deps.Session == nil || deps.Messenger == nil {
		return nil, fmt.Errorf("bot requires a session and a messenger")
	}
	if deps.Cache == nil {
		deps.Cache = search.NewCache(nil)
	}
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = search.DefaultPageSize
	}

	b := &Bot{
		session: deps.Session,
		msgr:    deps.Messenger,
		voice:   deps.Voice,
		relay:   deps.Relay,
		source:  deps.Source,
		cache:   deps.Cache,
		opts:    opts,
		router:  commands.NewRouter(opts.Prefix),
	}
	for _, cmd := range b.commandTable() {
		if err := b.router.Register(cmd); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Router exposes the command table.
func (b *Bot) Router() *commands.Router { return b.router }

// Dispatch handles one inbound chat message.
func (b *Bot) Dispatch(ctx context.Context, msg commands.Message) (bool, error) {
	return b.router.Dispatch(ctx, msg)
}

// Watch subscribes the bot's lifecycle observers: auto-recovery of the
// profile gate and event logging. Call it once. ctx bounds recovery runs.
func (b *Bot) Watch(ctx context.Context) {
	b.session.Subscribe(session.EventShowProfileSelection, func(ev session.Event) {
		if !b.opts.AutoSelectProfile || ctx.Err() != nil {
			return
		}
		// Events are emitted from the session's action queue, so recovery
		// must not call back into the session on this goroutine.
		b.mu.Lock()
		if b.closed || b.recovering {
			b.mu.Unlock()
			return
		}
		b.recovering = true
		b.wg.Add(1)
		b.mu.Unlock()

		go func() {
			defer b.wg.Done()
			defer func() {
				b.mu.Lock()
				b.recovering = false
				b.mu.Unlock()
			}()
			logging.Session("profile gate shown at %s, selecting first profile", ev.URL)
			if err := b.selectProfile(ctx); err != nil {
				logging.SessionError("automatic profile selection failed: %v", err)
				return
			}
			logging.Session("profile selected automatically")
		}()
	})
	b.session.Subscribe(session.EventLogin, func(ev session.Event) {
		logging.Session("logged in, landed on %s (%s)", ev.URL, ev.State.Phase)
	})
	b.session.Subscribe(session.EventNavigated, func(ev session.Event) {
		logging.SessionDebug("navigated to %s", ev.URL)
	})
	b.session.Subscribe(session.EventPlaybackStarted, func(ev session.Event) {
		if ev.Item != nil {
			logging.Session("playback started: %s", ev.Item.Title)
		}
	})
	b.session.Subscribe(session.EventPlaybackStopped, func(session.Event) {
		logging.Session("playback stopped")
	})
}

// Close stops starting new recovery runs and waits for the one in flight.
// Cancel the context passed to Watch first so it returns promptly.
func (b *Bot) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}

// Bootstrap logs the session in, retrying per the configured policy.
func (b *Bot) Bootstrap(ctx context.Context, creds session.Credentials) error {
	p := b.opts.Retry
	p.OnRetry = func(attempt int, err error) {
		logging.SessionError("login attempt %d failed: %v", attempt, err)
	}
	if err := retry.Run(ctx, p, func(ctx context.Context) error {
		return b.session.Login(ctx, creds)
	}); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (b *Bot) selectProfile(ctx context.Context) error {
	p := b.opts.Retry
	p.OnRetry = func(attempt int, err error) {
		logging.SessionDebug("profile selection attempt %d failed: %v", attempt, err)
	}
	return retry.Run(ctx, p, b.session.SelectFirstProfile)
}
