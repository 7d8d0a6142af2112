package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	cmd := NewCommand("/usr/bin/ffmpeg", "-i", "my clip.mp4", "out.gif")
	job := NewJob(cmd)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "ffmpeg", job.Tool)
	assert.Equal(t, JobQueued, job.Status)
	assert.Equal(t, PercentUnknown, job.Percent)
	assert.Equal(t, "/usr/bin/ffmpeg -i 'my clip.mp4' out.gif", job.CommandLine)

	decoded, err := job.Command()
	require.NoError(t, err)
	assert.Equal(t, cmd.Argv(), decoded.Argv())
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(NewCommand("yt-dlp", "URL"))

	job.MarkRunning("/tmp/work")
	assert.True(t, job.IsRunning())
	assert.NotNil(t, job.StartedAt)
	assert.Equal(t, "/tmp/work", job.WorkDir)

	assert.True(t, job.ApplyProgress(ProgressState{Percent: 42, Status: "Downloaded 42%..."}))
	assert.False(t, job.ApplyProgress(ProgressState{Percent: 42, Status: "Downloaded 42%..."}))
	assert.False(t, job.ApplyProgress(NoProgress()))
	assert.Equal(t, 42, job.Percent)

	job.MarkFailed(errors.New("exit status 1"))
	assert.True(t, job.IsTerminal())
	assert.Equal(t, "exit status 1", job.Error)
	assert.NotNil(t, job.CompletedAt)
}

func TestJob_SetOutputKeepsTail(t *testing.T) {
	job := NewJob(NewCommand("ffmpeg"))
	job.SetOutput("0123456789", "abc", 4)

	assert.Equal(t, "6789", job.Stdout)
	assert.Equal(t, "abc", job.Stderr)
}

func TestProgressState(t *testing.T) {
	assert.False(t, NoProgress().HasPercent())
	assert.Equal(t, "42% Downloaded", ProgressState{Percent: 42, Status: "Downloaded"}.String())
	assert.Equal(t, "Encoding", ProgressState{Percent: PercentUnknown, Status: "Encoding"}.String())
	assert.Equal(t, 0, ClampPercent(-3))
	assert.Equal(t, 100, ClampPercent(250))
	assert.Equal(t, "abort", Abort.String())
}
