package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
	req  string
}

func recorder(name string, calls *[]call) Command {
	return Command{
		Name: name,
		Handler: func(ctx context.Context, msg Message, args []string) error {
			*calls = append(*calls, call{name: name, args: args, req: RequestID(ctx)})
			return nil
		},
	}
}

func TestRegister_Validates(t *testing.T) {
	r := NewRouter("!")
	assert.ErrorIs(t, r.Register(Command{Handler: func(context.Context, Message, []string) error { return nil }}), ErrCommandNameInvalid)
	assert.ErrorIs(t, r.Register(Command{Name: "two words", Handler: func(context.Context, Message, []string) error { return nil }}), ErrCommandNameInvalid)
	assert.ErrorIs(t, r.Register(Command{Name: "help"}), ErrHandlerNil)
	assert.Empty(t, r.Commands())
}

func TestRegister_ReplacesSilently(t *testing.T) {
	var calls []call
	r := NewRouter("!")
	require.NoError(t, r.Register(recorder("play", &calls)))
	require.NoError(t, r.Register(Command{Name: "play", Handler: func(context.Context, Message, []string) error {
		calls = append(calls, call{name: "replacement"})
		return nil
	}}))

	handled, err := r.Dispatch(context.Background(), Message{Content: "!play 1"})
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, calls, 1)
	assert.Equal(t, "replacement", calls[0].name)
	assert.Len(t, r.Commands(), 1)
}

func TestNewRouter_KeepsPrefix(t *testing.T) {
	assert.Equal(t, "?", NewRouter("?").Prefix())
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		content     string
		wantHandled bool
		wantName    string
		wantArgs    []string
	}{
		{"!search the dark knight", true, "search", []string{"the", "dark", "knight"}},
		{"!search    spaced\tout  ", true, "search", []string{"spaced", "out"}},
		{"!help", true, "help", []string{}},
		{"search no prefix", false, "", nil},
		{"hello !search", false, "", nil},
		{"!", false, "", nil},
		{"!   ", false, "", nil},
		{"!unknown 1 2", false, "", nil},
		{"!Search x", false, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			var calls []call
			r := NewRouter("!")
			r.MustRegister(recorder("search", &calls))
			r.MustRegister(recorder("help", &calls))

			handled, err := r.Dispatch(context.Background(), Message{Content: tt.content, AuthorID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantHandled, handled)
			if !tt.wantHandled {
				assert.Empty(t, calls)
				return
			}
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantName, calls[0].name)
			assert.Equal(t, tt.wantArgs, calls[0].args)
			assert.NotEmpty(t, calls[0].req, "request id attached")
		})
	}
}

func TestDispatch_ReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter("?")
	r.MustRegister(Command{Name: "fail", Handler: func(context.Context, Message, []string) error { return boom }})

	handled, err := r.Dispatch(context.Background(), Message{Content: "?fail"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
}

func TestCommands_SortedByName(t *testing.T) {
	var calls []call
	r := NewRouter("!")
	for _, n := range []string{"search", "home", "play"} {
		r.MustRegister(recorder(n, &calls))
	}
	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"home", "play", "search"}, names)
}

func TestMustRegister_Panics(t *testing.T) {
	assert.Panics(t, func() { NewRouter("!").MustRegister(Command{}) })
}

func TestPositiveInt(t *testing.T) {
	n, err := PositiveInt([]string{"3"}, 0, "page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, args := range [][]string{{}, {"abc"}, {"0"}, {"-2"}, {"1.5"}} {
		_, err := PositiveInt(args, 0, "page")
		assert.ErrorIs(t, err, ErrInvalidArgument, "args %v", args)
	}
}

func TestRest(t *testing.T) {
	q, err := Rest([]string{"the", "dark", "knight"}, "query")
	require.NoError(t, err)
	assert.Equal(t, "the dark knight", q)

	_, err = Rest(nil, "query")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
