package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "giffer",
		Short: "Giffer - supervised ffmpeg, yt-dlp and ImageMagick runs",
		Long: `Run media tools under supervision with live progress, cancellation
and a persistent job history, from the command line or over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./configs/config.yaml or ~/.giffer/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(workdirCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(configCmd)
}

// exitError carries the exit status of a supervised command
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
