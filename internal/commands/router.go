// Package commands parses prefixed chat messages into commands and
// dispatches them to registered handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"watchalong/internal/logging"
)

// Router errors.
var (
	// ErrCommandNameInvalid is returned when a command name is empty or contains whitespace.
	ErrCommandNameInvalid = errors.New("command name must be a single non-empty word")
	// ErrHandlerNil is returned when a command has no handler.
	ErrHandlerNil = errors.New("command handler cannot be nil")
)

// Message is one inbound chat message.
type Message struct {
	ID         string
	ChannelID  string
	GuildID    string
	AuthorID   string
	AuthorName string
	Content    string
}

// Handler runs a command. args are the whitespace separated tokens after
// the command name. Handlers reply on their own; a returned error is only
// logged.
type Handler func(ctx context.Context, msg Message, args []string) error

// Command is a registered command.
type Command struct {
	Name        string
	Usage       string // e.g. "<query...>"
	Description string
	Handler     Handler
}

// Validate checks the command is dispatchable.
func (c Command) Validate() error {
	if c.Name == "" || strings.ContainsAny(c.Name, " \t\n") {
		return ErrCommandNameInvalid
	}
	if c.Handler == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNil, c.Name)
	}
	return nil
}

// Router holds the command table. Registration normally happens at startup;
// the table is safe for concurrent use regardless.
type Router struct {
	prefix string

	mu       sync.RWMutex
	commands map[string]Command
}

// NewRouter creates an empty router for messages starting with prefix.
func NewRouter(prefix string) *Router {
	return &Router{
		prefix:   prefix,
		commands: make(map[string]Command),
	}
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string { return r.prefix }

// Register adds cmd, silently replacing any command of the same name.
func (r *Router) Register(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[cmd.Name]; exists {
		logging.CommandsDebug("Replacing command: %s", cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	logging.CommandsDebug("Registered command: %s", cmd.Name)
	return nil
}

// MustRegister registers cmd and panics on error.
// Use this for static command registration at startup.
func (r *Router) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(fmt.Sprintf("failed to register command %s: %v", cmd.Name, err))
	}
}

// Get returns the command registered under name.
func (r *Router) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns every registered command sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parse splits content into a command name and its arguments. ok is false
// when content does not start with the prefix or names no command.
func (r *Router) Parse(content string) (name string, args []string, ok bool) {
	rest, found := strings.CutPrefix(content, r.prefix)
	if !found {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Dispatch runs the handler for msg. It reports whether a handler ran;
// unprefixed messages and unknown commands are dropped without a reply.
func (r *Router) Dispatch(ctx context.Context, msg Message) (bool, error) {
	name, args, ok := r.Parse(msg.Content)
	if !ok {
		return false, nil
	}
	cmd, ok := r.Get(name)
	if !ok {
		logging.CommandsDebug("ignoring unknown command %q from %s", name, msg.AuthorID)
		return false, nil
	}

	reqID := uuid.NewString()
	ctx = WithRequestID(ctx, reqID)
	log := logging.Get(logging.CategoryCommands).With(
		zap.String("request_id", reqID),
		zap.String("command", name),
		zap.String("user", msg.AuthorID),
	)
	log.Info("dispatching %s %v", name, args)

	if err := cmd.Handler(ctx, msg, args); err != nil {
		log.Warn("command %s failed: %v", name, err)
		return true, err
	}
	log.Debug("command %s done", name)
	return true, nil
}

type requestIDKey struct{}

// WithRequestID tags ctx with the request ID of the command being handled.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
