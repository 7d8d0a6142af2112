package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path := configPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".giffer", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("Server:       %s:%d\n", config.Server.Host, config.Server.Port)
		fmt.Printf("Work dir:     %s\n", orPlatformDefault(config.WorkDir.Path))
		fmt.Printf("Database:     %s\n", config.Jobs.DatabasePath)
		fmt.Printf("Logs:         %s\n", config.Logging.LogsDir)
		fmt.Printf("Concurrency:  %d\n", config.Jobs.ConcurrentLimit)
		fmt.Printf("Poll:         %s\n", config.Supervisor.PollInterval)
		fmt.Printf("Kill grace:   %s\n", config.Supervisor.KillGrace)
		fmt.Printf("ffmpeg:       %s\n", config.Tools.FFmpeg)
		fmt.Printf("ffprobe:      %s\n", config.Tools.FFprobe)
		fmt.Printf("yt-dlp:       %s\n", config.Tools.YTDLP)
		fmt.Printf("convert:      %s\n", config.Tools.Convert)
		return nil
	},
}

func orPlatformDefault(path string) string {
	if path == "" {
		return "(platform default)"
	}
	return path
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
