package bot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"watchalong/internal/chat"
	"watchalong/internal/events"
	"watchalong/internal/media"
	"watchalong/internal/search"
	"watchalong/internal/session"
)

// fakeSession mimics the controller's observable behavior without a page.
type fakeSession struct {
	mu sync.Mutex

	results   []search.Item
	searchErr error
	queries   []string

	current *search.Item
	played  []search.Item
	playErr error
	toggles int
	homeErr error

	tracks session.Tracks

	loginErrs   []error
	logins      int
	profileErrs []error
	profiles    int
	profileHook func()

	subs map[string][]events.Handler[session.Event]
}

func newFakeSession() *fakeSession {
	return &fakeSession{subs: make(map[string][]events.Handler[session.Event])}
}

func (f *fakeSession) Login(context.Context, session.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return popErr(&f.loginErrs)
}

func (f *fakeSession) SelectFirstProfile(context.Context) error {
	f.mu.Lock()
	hook := f.profileHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles++
	return popErr(&f.profileErrs)
}

func (f *fakeSession) Search(_ context.Context, q string) ([]search.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.results, f.searchErr
}

func (f *fakeSession) Play(_ context.Context, item search.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, item)
	f.current = &item
	return nil
}

func (f *fakeSession) GoHome(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return f.homeErr
}

func (f *fakeSession) ToggleSpace(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return session.ErrNothingPlaying
	}
	f.toggles++
	return nil
}

func (f *fakeSession) AvailableTracks(context.Context) (session.Tracks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return session.Tracks{}, session.ErrNothingPlaying
	}
	return f.tracks, nil
}

func (f *fakeSession) SetTrack(_ context.Context, kind session.TrackKind, n int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", session.ErrNothingPlaying
	}
	list := f.tracks.Audio
	if kind == session.SubtitleTrack {
		list = f.tracks.Subtitles
	}
	if n > len(list) {
		return "", fmt.Errorf("%w: %s track %d", session.ErrElementNotFound, kind, n)
	}
	return list[n-1], nil
}

func (f *fakeSession) Current() (search.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return search.Item{}, false
	}
	return *f.current, true
}

func (f *fakeSession) Subscribe(name string, h events.Handler[session.Event]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[name] = append(f.subs[name], h)
}

// fire delivers an event synchronously to every subscriber.
func (f *fakeSession) fire(ev session.Event) {
	f.mu.Lock()
	hs := append([]events.Handler[session.Event](nil), f.subs[ev.Name]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeSession) profileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

type post struct {
	ChannelID string
	MessageID string
	Content   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []post
	edits   []post
	editErr error
}

func (m *fakeMessenger) Send(_ context.Context, channelID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("m%d", len(m.sent)+1)
	m.sent = append(m.sent, post{ChannelID: channelID, MessageID: id, Content: content})
	return id, nil
}

func (m *fakeMessenger) Edit(_ context.Context, channelID, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, post{ChannelID: channelID, MessageID: messageID, Content: content})
	return nil
}

func (m *fakeMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Content
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeVoice struct {
	channels map[string]string // user -> channel
	joined   []string
}

func (v *fakeVoice) VoiceChannelOf(_, userID string) (string, error) {
	ch, ok := v.channels[userID]
	if !ok {
		return "", chat.ErrNotInVoice
	}
	return ch, nil
}

func (v *fakeVoice) JoinVoice(_ context.Context, _, channelID string) (media.Sink, error) {
	v.joined = append(v.joined, channelID)
	return nopSink{}, nil
}

type nopSink struct{}

func (nopSink) Speaking(bool) error                { return nil }
func (nopSink) Send(context.Context, []byte) error { return nil }
func (nopSink) Close() error                       { return nil }

// fakeRelay records Start/Stop without pumping.
type fakeRelay struct {
	running bool
	sink    media.Sink
}

func (r *fakeRelay) Start(_ context.Context, _ media.Source, dst media.Sink) error {
	if r.running {
		return media.ErrAlreadyRunning
	}
	r.running, r.sink = true, dst
	return nil
}

func (r *fakeRelay) Stop() error {
	if !r.running {
		return media.ErrNotRunning
	}
	r.running = false
	return nil
}

func (r *fakeRelay) Running() bool { return r.running }

type nopSource struct{}

func (nopSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
