package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8090, config.Server.Port)
	assert.Equal(t, "giffer", config.WorkDir.AppName)
	assert.Empty(t, config.WorkDir.Path)
	assert.Equal(t, 100*time.Millisecond, config.Supervisor.PollInterval)
	assert.Equal(t, 5*time.Second, config.Supervisor.KillGrace)
	assert.True(t, config.Supervisor.NotifyFinal)
	assert.Equal(t, 2, config.Jobs.ConcurrentLimit)
	assert.True(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestToolsConfig_Resolve(t *testing.T) {
	tools := ToolsConfig{FFmpeg: "/opt/ffmpeg/bin/ffmpeg"}

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", tools.Resolve("ffmpeg"))
	assert.Equal(t, "ffprobe", tools.Resolve("ffprobe"))
	assert.Equal(t, "yt-dlp", tools.Resolve("ytdlp"))
	assert.Equal(t, "gifsicle", tools.Resolve("gifsicle"))
}
