// Package chat connects the command router to Discord.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"watchalong/internal/commands"
	"watchalong/internal/logging"
	"watchalong/internal/media"
)

// MaxMessageLength is Discord's limit for message content.
const MaxMessageLength = 2000

// ErrNotInVoice is returned when the author is not in a voice channel.
var ErrNotInVoice = errors.New("not in a voice channel")

// Dispatcher consumes inbound messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg commands.Message) (bool, error)
}

// Client wraps a discordgo session.
type Client struct {
	session *discordgo.Session
	status  string

	mu         sync.RWMutex
	dispatcher Dispatcher
	ctx        context.Context
}

// New creates a client for a bot token. Nothing connects until Run.
func New(token, status string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	c := &Client{session: s, status: status, ctx: context.Background()}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onMessageCreate)
	return c, nil
}

// Handle routes inbound messages to d.
func (c *Client) Handle(d Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatcher = d
}

// Run opens the gateway connection and blocks until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	logging.Chat("connected to discord")

	<-ctx.Done()
	if err := c.session.Close(); err != nil {
		logging.ChatWarn("close discord gateway: %v", err)
	}
	return nil
}

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logging.Chat("logged in as %s#%s", r.User.Username, r.User.Discriminator)
	if c.status == "" {
		return
	}
	if err := s.UpdateGameStatus(0, c.status); err != nil {
		logging.ChatWarn("update status: %v", err)
	}
}

func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	msg, ok := toMessage(m.Message)
	if !ok {
		return
	}

	c.mu.RLock()
	d, ctx := c.dispatcher, c.ctx
	c.mu.RUnlock()
	if d == nil {
		return
	}
	if _, err := d.Dispatch(ctx, msg); err != nil {
		logging.CommandsDebug("message %s: %v", msg.ID, err)
	}
}

// toMessage converts a gateway message. Messages from bots, including this
// one, are rejected.
func toMessage(m *discordgo.Message) (commands.Message, bool) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return commands.Message{}, false
	}
	return commands.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
	}, true
}

// Send posts content to channelID and returns the new message's ID.
func (c *Client) Send(ctx context.Context, channelID, content string) (string, error) {
	m, err := c.session.ChannelMessageSend(channelID, truncate(content), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return m.ID, nil
}

// Edit replaces the content of an existing message.
func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	if _, err := c.session.ChannelMessageEdit(channelID, messageID, truncate(content), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// VoiceChannelOf returns the voice channel userID is connected to in guildID.
func (c *Client) VoiceChannelOf(guildID, userID string) (string, error) {
	vs, err := c.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return vs.ChannelID, nil
}

// JoinVoice connects to a voice channel, deafened.
func (c *Client) JoinVoice(ctx context.Context, guildID, channelID string) (media.Sink, error) {
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	logging.Chat("joined voice channel %s", channelID)
	return &voiceSink{vc: vc}, nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxMessageLength {
		return s
	}
	return string(r[:MaxMessageLength-1]) + "…"
}

// voiceSink adapts a voice connection to media.Sink.
type voiceSink struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceSink) Speaking(on bool) error {
	return v.vc.Speaking(on)
}

func (v *voiceSink) Send(ctx context.Context, frame []byte) error {
	select {
	case v.vc.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *voiceSink) Close() error {
	return v.vc.Disconnect()
}
