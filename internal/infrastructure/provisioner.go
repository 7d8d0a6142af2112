package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrWorkDirUnencodable is returned when the working directory cannot be
// represented in the locale encoding and the fallback was declined
var ErrWorkDirUnencodable = errors.New("working directory cannot be encoded in the locale encoding")

// ProvisionError reports a working directory that could not be created
type ProvisionError struct {
	Path string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to create working directory %s: %v", e.Path, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm accepts every question
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// PromptConfirmer asks on a terminal
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm prints prompt and reads an answer. Anything but y/yes declines.
func (c *PromptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(c.out, "%s [y/N] ", prompt); err != nil {
		return false, err
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Provisioner picks and creates the directory jobs run in
type Provisioner struct {
	appName   string
	platform  Platform
	confirmer Confirmer
	logger    *zap.Logger
	getenv    func(string) string
}

// NewProvisioner creates a provisioner. A nil confirmer declines the
// fallback directory.
func NewProvisioner(appName string, platform Platform, confirmer Confirmer, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		appName:   appName,
		platform:  platform,
		confirmer: confirmer,
		logger:    logger,
		getenv:    os.Getenv,
	}
}

// Provision returns a ready working directory. configured wins over the
// platform default when set.
func (p *Provisioner) Provision(ctx context.Context, configured string) (string, error) {
	path, err := p.resolve(configured)
	if err != nil {
		return "", err
	}

	charset := localeCharset(p.getenv)
	if !encodable(path, charset) {
		fallback := filepath.Join(os.TempDir(), p.appName)
		p.logger.Warn("Working directory not encodable in locale",
			zap.String("path", path),
			zap.String("charset", charset),
			zap.String("fallback", fallback))

		ok := false
		if p.confirmer != nil {
			prompt := fmt.Sprintf("The working directory %s cannot be represented in the %s encoding. Use %s instead?",
				path, charset, fallback)
			if ok, err = p.confirmer.Confirm(ctx, prompt); err != nil {
				return "", fmt.Errorf("failed to confirm fallback directory: %w", err)
			}
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrWorkDirUnencodable, path)
		}
		path = fallback
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return "", &ProvisionError{Path: path, Err: err}
	}
	p.logger.Debug("Working directory ready", zap.String("path", path))
	return path, nil
}

func (p *Provisioner) resolve(configured string) (string, error) {
	if configured != "" {
		return ExpandPath(configured), nil
	}
	dir, err := p.platform.DataDir(p.appName)
	if err != nil {
		return "", fmt.Errorf("failed to determine data directory: %w", err)
	}
	return dir, nil
}

// ExpandPath expands a leading ~ and environment variables
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// localeCharset returns the codeset of the active locale, or "" for UTF-8
func localeCharset(getenv func(string) string) string {
	var locale string
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if locale = getenv(key); locale != "" {
			break
		}
	}
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return "US-ASCII"
	}
	if i := strings.IndexByte(locale, '.'); i >= 0 {
		return locale[i+1:]
	}
	return ""
}

func encodable(path, charset string) bool {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return utf8.ValidString(path)
	case "us-ascii", "ascii", "ansi_x3.4-1968":
		for _, r := range path {
			if r >= utf8.RuneSelf {
				return false
			}
		}
		return true
	}

	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		// unknown charsets are not second-guessed
		return true
	}
	_, err = enc.NewEncoder().String(path)
	return err == nil
}
