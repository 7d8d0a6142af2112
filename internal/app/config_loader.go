package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/giffer-go/internal/domain"
	"github.com/yourusername/giffer-go/internal/infrastructure"
)

// EnvPrefix prefixes environment overrides, e.g. GIFFER_JOBS_CONCURRENT_LIMIT
const EnvPrefix = "GIFFER"

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.giffer")
		v.AddConfigPath("/etc/giffer")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(config)
	config.Supervisor.Env = upperKeys(config.Supervisor.Env)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper, c *domain.Config) {
	for key, value := range configValues(c) {
		v.SetDefault(key, value)
	}
}

// expandPaths expands ~ and environment variables in path settings
func expandPaths(config *domain.Config) {
	if config.WorkDir.Path != "" {
		config.WorkDir.Path = infrastructure.ExpandPath(config.WorkDir.Path)
	}
	config.Jobs.DatabasePath = infrastructure.ExpandPath(config.Jobs.DatabasePath)
	config.Logging.LogsDir = infrastructure.ExpandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" && config.Logging.OutputPath != "" {
		config.Logging.OutputPath = infrastructure.ExpandPath(config.Logging.OutputPath)
	}
}

// upperKeys restores environment variable names, viper lowercases map keys
func upperKeys(env map[string]string) map[string]string {
	if len(env) == 0 {
		return env
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.IdleExit < 0 {
		return fmt.Errorf("idle exit cannot be negative")
	}

	if config.WorkDir.AppName == "" {
		return fmt.Errorf("workdir app name not configured")
	}

	if config.Supervisor.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if config.Supervisor.KillGrace < 0 || config.Supervisor.WaitDelay < 0 {
		return fmt.Errorf("kill grace and wait delay cannot be negative")
	}

	if config.Jobs.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Jobs.DatabasePath == "" {
		return fmt.Errorf("jobs database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configValues flattens config into viper keys
func configValues(c *domain.Config) map[string]interface{} {
	values := map[string]interface{}{
		"server.host":              c.Server.Host,
		"server.port":              c.Server.Port,
		"server.idle_exit":         c.Server.IdleExit.String(),
		"workdir.path":             c.WorkDir.Path,
		"workdir.app_name":         c.WorkDir.AppName,
		"workdir.assume_yes":       c.WorkDir.AssumeYes,
		"supervisor.poll_interval": c.Supervisor.PollInterval.String(),
		"supervisor.kill_grace":    c.Supervisor.KillGrace.String(),
		"supervisor.wait_delay":    c.Supervisor.WaitDelay.String(),
		"supervisor.notify_final":  c.Supervisor.NotifyFinal,
		"tools.ffmpeg":             c.Tools.FFmpeg,
		"tools.ffprobe":            c.Tools.FFprobe,
		"tools.ytdlp":              c.Tools.YTDLP,
		"tools.convert":            c.Tools.Convert,
		"jobs.database_path":       c.Jobs.DatabasePath,
		"jobs.concurrent_limit":    c.Jobs.ConcurrentLimit,
		"jobs.max_output_bytes":    c.Jobs.MaxOutputBytes,
		"notification.enabled":     c.Notification.Enabled,
		"notification.sound":       c.Notification.Sound,
		"logging.level":            c.Logging.Level,
		"logging.format":           c.Logging.Format,
		"logging.output_path":      c.Logging.OutputPath,
		"logging.logs_dir":         c.Logging.LogsDir,
	}
	if len(c.Supervisor.Env) > 0 {
		values["supervisor.env"] = c.Supervisor.Env
	}
	return values
}
