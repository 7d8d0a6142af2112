package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned when a command has no executable
var ErrEmptyCommand = errors.New("empty command")

// Command is an executable plus its arguments. It is immutable: accessors
// hand out copies.
type Command struct {
	argv []string
}

// NewCommand builds a command from pre-tokenized arguments
func NewCommand(binary string, args ...string) Command {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, binary)
	argv = append(argv, args...)
	return Command{argv: argv}
}

// CommandFromArgv builds a command from a full argument vector
func CommandFromArgv(argv []string) (Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return Command{}, ErrEmptyCommand
	}
	return NewCommand(argv[0], argv[1:]...), nil
}

// ParseCommand splits a shell-style command line. Single and double quotes
// and backslash escapes follow POSIX shell rules, so quoted paths with
// spaces stay one argument.
func ParseCommand(line string) (Command, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("tokenize command: %w", err)
	}
	return CommandFromArgv(argv)
}

// Binary returns the executable
func (c Command) Binary() string {
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

// Tool returns the executable's base name, e.g. "ffmpeg". Only a Windows
// ".exe" suffix is dropped; versioned names like "python3.11" are kept.
func (c Command) Tool() string {
	base := filepath.Base(c.Binary())
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".exe") && len(base) > len(ext) {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// Args returns the arguments after the executable
func (c Command) Args() []string {
	if len(c.argv) < 2 {
		return nil
	}
	return append([]string(nil), c.argv[1:]...)
}

// Argv returns the executable and its arguments
func (c Command) Argv() []string {
	return append([]string(nil), c.argv...)
}

// IsZero reports whether the command has no executable
func (c Command) IsZero() bool {
	return len(c.argv) == 0 || c.argv[0] == ""
}

// String renders the command quoted for display in logs
func (c Command) String() string {
	if c.IsZero() {
		return ""
	}
	return ShellEscapeCommand(c.argv[0], c.argv[1:]...)
}
