package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	WorkDir      WorkDirConfig      `mapstructure:"workdir"`
	Supervisor   SupervisorConfig   `mapstructure:"supervisor"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	IdleExit time.Duration `mapstructure:"idle_exit"` // stop after this long without jobs, 0 never
}

// WorkDirConfig controls where temporary artifacts are written
type WorkDirConfig struct {
	Path      string `mapstructure:"path"`       // empty means the platform default
	AppName   string `mapstructure:"app_name"`   // directory name under the platform default
	AssumeYes bool   `mapstructure:"assume_yes"` // accept the fail-safe location without asking
}

// SupervisorConfig tunes how external processes are run
type SupervisorConfig struct {
	PollInterval time.Duration     `mapstructure:"poll_interval"`
	KillGrace    time.Duration     `mapstructure:"kill_grace"`  // SIGTERM to SIGKILL escalation
	WaitDelay    time.Duration     `mapstructure:"wait_delay"`  // bound on pipe drain after exit
	NotifyFinal  bool              `mapstructure:"notify_final"`
	Env          map[string]string `mapstructure:"env"`
}

// ToolsConfig names the external binaries
type ToolsConfig struct {
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
	YTDLP   string `mapstructure:"ytdlp"`
	Convert string `mapstructure:"convert"`
}

// Resolve maps a tool alias to its configured binary. Unknown names are
// returned unchanged so any executable on PATH can be run.
func (t ToolsConfig) Resolve(name string) string {
	switch name {
	case "ffmpeg":
		return orDefault(t.FFmpeg, name)
	case "ffprobe":
		return orDefault(t.FFprobe, name)
	case "yt-dlp", "ytdlp":
		return orDefault(t.YTDLP, "yt-dlp")
	case "convert", "magick":
		return orDefault(t.Convert, name)
	}
	return name
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// JobsConfig contains job persistence and scheduling configuration
type JobsConfig struct {
	DatabasePath    string `mapstructure:"database_path"`
	ConcurrentLimit int    `mapstructure:"concurrent_limit"`
	MaxOutputBytes  int    `mapstructure:"max_output_bytes"` // stdout/stderr tail kept per job
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   string `mapstructure:"sound"` // sound file or system sound name, empty for silence
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // category and raw process output logs
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		WorkDir: WorkDirConfig{
			AppName: "giffer",
		},
		Supervisor: SupervisorConfig{
			PollInterval: 100 * time.Millisecond,
			KillGrace:    5 * time.Second,
			WaitDelay:    5 * time.Second,
			NotifyFinal:  true,
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			YTDLP:   "yt-dlp",
			Convert: "convert",
		},
		Jobs: JobsConfig{
			DatabasePath:    "$HOME/.giffer/jobs.db",
			ConcurrentLimit: 2,
			MaxOutputBytes:  64 * 1024,
		},
		Notification: NotificationConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			LogsDir:    "$HOME/.giffer/logs",
		},
	}
}
