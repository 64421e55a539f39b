package bot

import (
	"context"
	"errors"
	"fmt"

	"watchalong/internal/commands"
	"watchalong/internal/logging"
	"watchalong/internal/media"
	"watchalong/internal/search"
	"watchalong/internal/session"
)

// action returns the reply text for a command. A non-nil error replaces the
// text with its description.
type action func(ctx context.Context, msg commands.Message, args []string) (string, error)

func (b *Bot) commandTable() []commands.Command {
	return []commands.Command{
		{Name: "help", Description: "List available commands", Handler: b.reply(b.help)},
		{Name: "search", Usage: "<query...>", Description: "Search the catalog", Handler: b.reply(b.search)},
		{Name: "page", Usage: "<pageNo>", Description: "Show another page of your last search", Handler: b.reply(b.page)},
		{Name: "play", Usage: "<itemNo>", Description: "Play a result of your last search", Handler: b.reply(b.play)},
		{Name: "togglespace", Description: "Pause or resume playback", Handler: b.reply(b.toggleSpace)},
		{Name: "currentplaying", Description: "Show what is playing", Handler: b.reply(b.currentPlaying)},
		{Name: "audiosubtitle", Description: "List audio and subtitle tracks", Handler: b.reply(b.audioSubtitle)},
		{Name: "setaudio", Usage: "<no>", Description: "Select an audio track", Handler: b.reply(b.setTrack(session.AudioTrack))},
		{Name: "setsubtitle", Usage: "<no>", Description: "Select a subtitle track", Handler: b.reply(b.setTrack(session.SubtitleTrack))},
		{Name: "home", Description: "Stop playback and go back home", Handler: b.reply(b.home)},
		{Name: "fixprofileselect", Description: "Select the first profile again", Handler: b.reply(b.fixProfileSelect)},
		{Name: "startstream", Description: "Relay the session into your voice channel", Handler: b.reply(b.startStream)},
		{Name: "stopstream", Description: "Stop the voice relay", Handler: b.reply(b.stopStream)},
	}
}

// reply adapts an action to a router handler that answers exactly once.
func (b *Bot) reply(a action) commands.Handler {
	return func(ctx context.Context, msg commands.Message, args []string) error {
		text, err := a(ctx, msg, args)
		if err != nil {
			text = describe(err)
		}
		if text == "" {
			return err
		}
		if _, sendErr := b.msgr.Send(ctx, msg.ChannelID, text); sendErr != nil {
			logging.ChatWarn("reply to %s: %v", msg.ID, sendErr)
			if err == nil {
				err = sendErr
			}
		}
		return err
	}
}

func (b *Bot) help(context.Context, commands.Message, []string) (string, error) {
	return renderHelp(b.router.Prefix(), b.router.Commands()), nil
}

// search runs the query, posts page 1 and records the posted message so
// later page requests edit it.
func (b *Bot) search(ctx context.Context, msg commands.Message, args []string) (string, error) {
	query, err := commands.Rest(args, "search query")
	if err != nil {
		return "", err
	}
	items, err := b.session.Search(ctx, query)
	if err != nil {
		return "", err
	}

	size := b.opts.PageSize
	page := search.Page{Number: 1, Total: search.TotalPages(len(items), size), Items: items[:min(size, len(items))]}
	id, err := b.msgr.Send(ctx, msg.ChannelID, renderResults(query, page, b.opts.Prefix))
	if err != nil {
		return "", err
	}

	ref := search.MessageRef{ChannelID: msg.ChannelID, MessageID: id}
	if err := b.cache.Record(ctx, msg.AuthorID, ref, items); err != nil {
		logging.Get(logging.CategoryStore).Warn("%v", err)
	}
	return "", nil
}

// page edits the message of the caller's last search in place. If the
// message is gone, a fresh one is posted and recorded.
func (b *Bot) page(ctx context.Context, msg commands.Message, args []string) (string, error) {
	n, err := commands.PositiveInt(args, 0, "page number")
	if err != nil {
		return "", err
	}
	entry, ok := b.cache.Entry(msg.AuthorID)
	if !ok {
		return "", search.ErrNoSearch
	}
	page, err := b.cache.Page(msg.AuthorID, n, b.opts.PageSize)
	if err != nil {
		return "", err
	}
	if len(page.Items) == 0 {
		return "", fmt.Errorf("%w: page must be between 1 and %d", commands.ErrInvalidArgument, max(page.Total, 1))
	}

	content := renderResults("", page, b.opts.Prefix)
	ref := entry.Message
	err = b.msgr.Edit(ctx, ref.ChannelID, ref.MessageID, content)
	if err == nil {
		return "", nil
	}
	logging.ChatWarn("edit search message %s: %v", ref.MessageID, err)

	id, err := b.msgr.Send(ctx, msg.ChannelID, content)
	if err != nil {
		return "", err
	}
	ref = search.MessageRef{ChannelID: msg.ChannelID, MessageID: id}
	if err := b.cache.Record(ctx, msg.AuthorID, ref, entry.Items); err != nil {
		logging.Get(logging.CategoryStore).Warn("%v", err)
	}
	return "", nil
}

func (b *Bot) play(ctx context.Context, msg commands.Message, args []string) (string, error) {
	n, err := commands.PositiveInt(args, 0, "item number")
	if err != nil {
		return "", err
	}
	item, err := b.cache.Resolve(msg.AuthorID, n)
	if err != nil {
		return "", err
	}
	if err := b.session.Play(ctx, item); err != nil {
		return "", err
	}
	return fmt.Sprintf("Now playing: %s", item.Title), nil
}

func (b *Bot) toggleSpace(ctx context.Context, _ commands.Message, _ []string) (string, error) {
	if err := b.session.ToggleSpace(ctx); err != nil {
		return "", err
	}
	return "Toggled play/pause.", nil
}

func (b *Bot) currentPlaying(context.Context, commands.Message, []string) (string, error) {
	item, ok := b.session.Current()
	if !ok {
		return "Currently playing: none", nil
	}
	return fmt.Sprintf("Currently playing: %s (%s)", item.Title, item.Path), nil
}

func (b *Bot) audioSubtitle(ctx context.Context, _ commands.Message, _ []string) (string, error) {
	tracks, err := b.session.AvailableTracks(ctx)
	if err != nil {
		return "", err
	}
	return renderTracks(tracks, b.opts.Prefix), nil
}

func (b *Bot) setTrack(kind session.TrackKind) action {
	return func(ctx context.Context, _ commands.Message, args []string) (string, error) {
		n, err := commands.PositiveInt(args, 0, kind.String()+" number")
		if err != nil {
			return "", err
		}
		name, err := b.session.SetTrack(ctx, kind, n)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Selected %s track: %s", kind, name), nil
	}
}

func (b *Bot) home(ctx context.Context, _ commands.Message, _ []string) (string, error) {
	if err := b.session.GoHome(ctx); err != nil {
		return "", err
	}
	return "Back on the home page.", nil
}

func (b *Bot) fixProfileSelect(ctx context.Context, _ commands.Message, _ []string) (string, error) {
	if err := b.selectProfile(ctx); err != nil {
		return "", err
	}
	return "Profile selected.", nil
}

// startStream joins the caller's voice channel and starts relaying. The
// relay outlives the command and runs until stopstream or the source ends.
func (b *Bot) startStream(ctx context.Context, msg commands.Message, _ []string) (string, error) {
	if b.voice == nil || b.relay == nil || b.source == nil {
		return "", media.ErrNotConfigured
	}
	if b.relay.Running() {
		return "", media.ErrAlreadyRunning
	}
	channelID, err := b.voice.VoiceChannelOf(msg.GuildID, msg.AuthorID)
	if err != nil {
		return "", err
	}
	sink, err := b.voice.JoinVoice(ctx, msg.GuildID, channelID)
	if err != nil {
		return "", err
	}
	if err := b.relay.Start(ctx, b.source, sink); err != nil {
		if !errors.Is(err, media.ErrAlreadyRunning) {
			logging.StreamWarn("start relay: %v", err)
		}
		return "", err
	}
	logging.Stream("relay started in channel %s for %s", channelID, msg.AuthorID)
	return "Streaming into your voice channel.", nil
}

func (b *Bot) stopStream(context.Context, commands.Message, []string) (string, error) {
	if b.relay == nil {
		return "", media.ErrNotRunning
	}
	if err := b.relay.Stop(); err != nil {
		return "", err
	}
	return "Stream stopped.", nil
}
