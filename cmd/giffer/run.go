package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- command args...]",
	Short: "Run a command with live progress",
	Long: `Run ffmpeg, yt-dlp, convert or any other executable under supervision.
Progress is printed on stderr. Ctrl-C aborts the command.

  giffer run -- ffmpeg -i in.mp4 -vf fps=10 out.gif
  giffer run --shell "yt-dlp -f mp4 https://example.com/v"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shellLine, _ := cmd.Flags().GetString("shell")
		workDir, _ := cmd.Flags().GetString("workdir")
		quiet, _ := cmd.Flags().GetBool("quiet")

		req, err := jobRequest(shellLine, args)
		if err != nil {
			return err
		}
		req.WorkDir = workDir

		svc, err := loadServices()
		if err != nil {
			return err
		}
		defer svc.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var onProgress domain.ProgressFunc
		if !quiet {
			onProgress = progressPrinter(os.Stderr)
		}

		job, err := svc.jobMgr.Run(ctx, req, onProgress)
		if job == nil {
			return err
		}
		return jobExit(job, err)
	},
}

func init() {
	runCmd.Flags().StringP("shell", "s", "", "Command line to split with shell quoting rules")
	runCmd.Flags().StringP("workdir", "w", "", "Working directory (default from config)")
	runCmd.Flags().BoolP("quiet", "q", false, "Don't print progress")
}

// jobRequest builds a request from --shell or the arguments after --
func jobRequest(shellLine string, args []string) (app.JobRequest, error) {
	switch {
	case shellLine != "" && len(args) > 0:
		return app.JobRequest{}, fmt.Errorf("use either --shell or a command after --, not both")
	case shellLine != "":
		return app.JobRequest{CommandLine: shellLine}, nil
	case len(args) > 0:
		return app.JobRequest{Tool: args[0], Args: args[1:]}, nil
	}
	return app.JobRequest{}, fmt.Errorf("no command given")
}

// progressPrinter rewrites one status line per fresh progress state
func progressPrinter(w io.Writer) domain.ProgressFunc {
	last := ""
	return func(state domain.ProgressState) domain.Decision {
		if state.Done {
			if last != "" {
				fmt.Fprintln(w)
			}
			return domain.Continue
		}
		if !state.Fresh {
			return domain.Continue
		}
		line := state.String()
		if line == last {
			return domain.Continue
		}
		pad := ""
		if n := len(last) - len(line); n > 0 {
			pad = strings.Repeat(" ", n)
		}
		fmt.Fprintf(w, "\r%s%s", line, pad)
		last = line
		return domain.Continue
	}
}

// jobExit maps a finished job to the process exit status
func jobExit(job *domain.Job, err error) error {
	switch job.Status {
	case domain.JobCompleted:
		return nil
	case domain.JobCancelled:
		fmt.Fprintln(os.Stderr, "Aborted")
		return &exitError{code: 130}
	}

	if job.Stderr != "" {
		fmt.Fprintln(os.Stderr, strings.TrimRight(job.Stderr, "\n"))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else if job.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", job.Error)
	}
	if job.ExitCode > 0 {
		return &exitError{code: job.ExitCode}
	}
	return &exitError{code: 1}
}
