package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned when a command argument is missing or malformed.
var ErrInvalidArgument = errors.New("invalid argument")

// PositiveInt parses args[i] as a 1-based number.
func PositiveInt(args []string, i int, what string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidArgument, what)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", ErrInvalidArgument, what, args[i])
	}
	return n, nil
}

// Rest joins every argument into one string, e.g. a multi-word query.
func Rest(args []string, what string) (string, error) {
	s := strings.Join(args, " ")
	if s == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidArgument, what)
	}
	return s, nil
}
