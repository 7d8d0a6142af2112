package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvisioner(platform Platform, confirmer Confirmer, env map[string]string) *Provisioner {
	p := NewProvisioner("giffer", platform, confirmer, zap.NewNop())
	p.getenv = func(key string) string { return env[key] }
	return p
}

func TestProvisioner_ConfiguredPathWins(t *testing.T) {
	base := t.TempDir()
	t.Setenv("GIFFER_TEST_BASE", base)
	p := newTestProvisioner(&fakePlatform{}, nil, nil)

	dir, err := p.Provision(context.Background(), "$GIFFER_TEST_BASE/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "work"), dir)
	assert.DirExists(t, dir)
}

func TestProvisioner_PlatformDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	p := newTestProvisioner(&unixPlatform{name: "linux"}, nil, nil)

	dir, err := p.Provision(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".giffer"), dir)
	assert.DirExists(t, dir)
}

func TestProvisioner_UnencodableFallback(t *testing.T) {
	base := t.TempDir()
	configured := filepath.Join(base, "動画")
	env := map[string]string{"LANG": "C"}

	var prompts []string
	accept := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return true, nil
	})
	dir, err := newTestProvisioner(&fakePlatform{}, accept, env).Provision(context.Background(), configured)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "giffer"), dir)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], configured)

	decline := ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
	_, err = newTestProvisioner(&fakePlatform{}, decline, env).Provision(context.Background(), configured)
	assert.True(t, errors.Is(err, ErrWorkDirUnencodable))
	assert.NoDirExists(t, configured)

	_, err = newTestProvisioner(&fakePlatform{}, nil, env).Provision(context.Background(), configured)
	assert.True(t, errors.Is(err, ErrWorkDirUnencodable))
}

func TestProvisioner_CreateFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := newTestProvisioner(&fakePlatform{}, nil, nil).Provision(context.Background(), filepath.Join(blocker, "work"))
	var perr *ProvisionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, filepath.Join(blocker, "work"), perr.Path)
}

func TestLocaleCharset(t *testing.T) {
	tests := []struct {
		env      map[string]string
		expected string
	}{
		{env: map[string]string{}, expected: ""},
		{env: map[string]string{"LANG": "en_US.UTF-8"}, expected: "UTF-8"},
		{env: map[string]string{"LANG": "C"}, expected: "US-ASCII"},
		{env: map[string]string{"LANG": "de_DE.ISO-8859-1@euro"}, expected: "ISO-8859-1"},
		{env: map[string]string{"LANG": "en_US.UTF-8", "LC_CTYPE": "POSIX"}, expected: "US-ASCII"},
		{env: map[string]string{"LC_ALL": "ja_JP.EUC-JP", "LC_CTYPE": "C"}, expected: "EUC-JP"},
	}

	for _, tt := range tests {
		got := localeCharset(func(key string) string { return tt.env[key] })
		assert.Equal(t, tt.expected, got)
	}
}

func TestEncodable(t *testing.T) {
	assert.True(t, encodable("/home/ana/vidéos", ""))
	assert.True(t, encodable("/home/ana/videos", "US-ASCII"))
	assert.False(t, encodable("/home/ana/vidéos", "US-ASCII"))
	assert.True(t, encodable("/home/ana/vidéos", "ISO-8859-1"))
	assert.False(t, encodable("/home/ana/動画", "ISO-8859-1"))
	assert.True(t, encodable("/home/ana/動画", "no-such-charset"))
}

func TestPromptConfirmer(t *testing.T) {
	var out strings.Builder
	ok, err := NewPromptConfirmer(strings.NewReader("yes\n"), &out).Confirm(context.Background(), "Use /tmp?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Use /tmp? [y/N] ", out.String())

	ok, err = NewPromptConfirmer(strings.NewReader(""), &out).Confirm(context.Background(), "Use /tmp?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "giffer"), ExpandPath("~/giffer"))
	assert.Equal(t, filepath.Join(home, "jobs.db"), ExpandPath("$HOME/jobs.db"))
	assert.Equal(t, "/var/lib/giffer", ExpandPath("/var/lib/giffer/"))
}
