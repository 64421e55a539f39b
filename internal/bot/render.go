package bot

import (
	"errors"
	"fmt"
	"strings"

	"watchalong/internal/chat"
	"watchalong/internal/commands"
	"watchalong/internal/media"
	"watchalong/internal/retry"
	"watchalong/internal/search"
	"watchalong/internal/session"
)

func renderHelp(prefix string, cmds []commands.Command) string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, c := range cmds {
		sb.WriteString("`" + prefix + c.Name)
		if c.Usage != "" {
			sb.WriteString(" " + c.Usage)
		}
		sb.WriteString("` " + c.Description + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderResults formats one page of results. Items are numbered by their
// position in the whole result set, which is what play expects.
func renderResults(query string, p search.Page, prefix string) string {
	if p.Total == 0 {
		return fmt.Sprintf("No results for %q.", query)
	}

	var sb strings.Builder
	if query != "" {
		fmt.Fprintf(&sb, "Results for %q ", query)
	}
	fmt.Fprintf(&sb, "(Page %d/%d)\n", p.Number, p.Total)
	for i, item := range p.Items {
		fmt.Fprintf(&sb, "%d. %s\n", p.Offset+i+1, item.Title)
	}
	if len(p.Items) > 0 && p.Items[0].Thumbnail != "" {
		sb.WriteString(p.Items[0].Thumbnail + "\n")
	}
	fmt.Fprintf(&sb, "Use `%splay <no>` to watch", prefix)
	if p.Total > 1 {
		fmt.Fprintf(&sb, " or `%spage <no>` for more", prefix)
	}
	sb.WriteString(".")
	return sb.String()
}

func renderTracks(t session.Tracks, prefix string) string {
	var sb strings.Builder
	list := func(title string, names []string) {
		sb.WriteString(title + ":\n")
		if len(names) == 0 {
			sb.WriteString("  (none)\n")
		}
		for i, n := range names {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, n)
		}
	}
	list("Audio", t.Audio)
	list("Subtitles", t.Subtitles)
	fmt.Fprintf(&sb, "Use `%ssetaudio <no>` or `%ssetsubtitle <no>` to switch.", prefix, prefix)
	return sb.String()
}

// describe maps a failure to the one line the user sees.
func describe(err error) string {
	switch {
	case errors.Is(err, retry.ErrRetriesExhausted):
		return "Gave up after several attempts. Try again in a moment."
	case errors.Is(err, commands.ErrInvalidArgument):
		return "Invalid argument: " + strings.TrimPrefix(err.Error(), commands.ErrInvalidArgument.Error()+": ")
	case errors.Is(err, search.ErrNoSearch):
		return "You have no previous search. Search for something first."
	case errors.Is(err, search.ErrNotFound):
		return "That number is not in your search results."
	case errors.Is(err, session.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, session.ErrElementNotFound):
		return "Couldn't find that on the page."
	case errors.Is(err, session.ErrNavigationFailure):
		return "The page failed to load."
	case errors.Is(err, session.ErrInvalidState):
		return "The session isn't ready for that yet."
	case errors.Is(err, session.ErrClosed):
		return "The session is shutting down."
	case errors.Is(err, chat.ErrNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, media.ErrAlreadyRunning):
		return "A stream is already running."
	case errors.Is(err, media.ErrNotRunning):
		return "No stream is running."
	case errors.Is(err, media.ErrNotConfigured):
		return "Streaming is not configured."
	default:
		return "Something went wrong."
	}
}
