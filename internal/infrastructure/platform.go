package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform groups the desktop integrations that differ between operating
// systems
type Platform interface {
	Name() string

	// DataDir returns the default per-user data directory for appName
	DataDir(appName string) (string, error)

	// Open opens path with the default application
	Open(ctx context.Context, path string) error

	// Notify shows a desktop notification
	Notify(ctx context.Context, title, message string) error

	// PlaySound plays a short sound file or named system sound
	PlaySound(ctx context.Context, sound string) error
}

// commandRunner runs a helper program to completion
type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DetectPlatform returns the Platform of the running system
func DetectPlatform() Platform {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) Platform {
	switch goos {
	case "darwin":
		return &darwinPlatform{run: runCommand}
	case "windows":
		return &windowsPlatform{run: runCommand}
	default:
		return &unixPlatform{name: goos, run: runCommand}
	}
}

type darwinPlatform struct {
	run commandRunner
}

func (p *darwinPlatform) Name() string { return "darwin" }

func (p *darwinPlatform) DataDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Application Support", appName), nil
}

func (p *darwinPlatform) Open(ctx context.Context, path string) error {
	return p.run(ctx, "open", path)
}

func (p *darwinPlatform) Notify(ctx context.Context, title, message string) error {
	script := fmt.Sprintf("display notification %s with title %s", appleScriptQuote(message), appleScriptQuote(title))
	return p.run(ctx, "osascript", "-e", script)
}

func (p *darwinPlatform) PlaySound(ctx context.Context, sound string) error {
	if !strings.ContainsRune(sound, os.PathSeparator) {
		sound = filepath.Join("/System/Library/Sounds", sound+".aiff")
	}
	return p.run(ctx, "afplay", sound)
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

type windowsPlatform struct {
	run commandRunner
}

func (p *windowsPlatform) Name() string { return "windows" }

func (p *windowsPlatform) DataDir(appName string) (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		return "", errors.New("APPDATA is not set")
	}
	return filepath.Join(appData, appName), nil
}

func (p *windowsPlatform) Open(ctx context.Context, path string) error {
	return p.run(ctx, "cmd", "/c", "start", "", path)
}

func (p *windowsPlatform) Notify(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms; `+
		`$n = New-Object System.Windows.Forms.NotifyIcon; `+
		`$n.Icon = [System.Drawing.SystemIcons]::Information; $n.Visible = $true; `+
		`$n.ShowBalloonTip(5000, %s, %s, 'Info'); Start-Sleep -Seconds 5; $n.Dispose()`,
		powershellQuote(title), powershellQuote(message))
	return p.run(ctx, "powershell", "-NoProfile", "-Command", script)
}

func (p *windowsPlatform) PlaySound(ctx context.Context, sound string) error {
	script := fmt.Sprintf(`(New-Object Media.SoundPlayer %s).PlaySync()`, powershellQuote(sound))
	return p.run(ctx, "powershell", "-NoProfile", "-Command", script)
}

func powershellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// unixPlatform covers linux and the BSDs
type unixPlatform struct {
	name string
	run  commandRunner
}

func (p *unixPlatform) Name() string { return p.name }

func (p *unixPlatform) DataDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+appName), nil
}

func (p *unixPlatform) Open(ctx context.Context, path string) error {
	return p.run(ctx, "xdg-open", path)
}

func (p *unixPlatform) Notify(ctx context.Context, title, message string) error {
	return p.run(ctx, "notify-send", title, message)
}

func (p *unixPlatform) PlaySound(ctx context.Context, sound string) error {
	return p.run(ctx, "paplay", sound)
}
