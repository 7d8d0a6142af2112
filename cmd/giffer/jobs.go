package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/giffer-go/internal/app"
	"github.com/yourusername/giffer-go/internal/domain"
)

var serverURL string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage jobs on a running server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if serverURL != "" {
			return nil
		}
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		serverURL = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
		return nil
	},
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit [flags] [-- command args...]",
	Short: "Queue a command on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		shellLine, _ := cmd.Flags().GetString("shell")
		workDir, _ := cmd.Flags().GetString("workdir")
		req, err := jobRequest(shellLine, args)
		if err != nil {
			return err
		}
		req.WorkDir = workDir

		var job domain.Job
		if err := apiCall(http.MethodPost, "/api/v1/jobs", req, http.StatusCreated, &job); err != nil {
			return err
		}
		fmt.Printf("Job queued\n")
		fmt.Printf("ID:     %s\n", job.ID)
		fmt.Printf("Status: %s\n", job.Status)
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		path := "/api/v1/jobs"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var resp struct {
			Jobs []domain.Job `json:"jobs"`
		}
		if err := apiCall(http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tPROGRESS\tCREATED")
		for _, j := range resp.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(j.ID, 8),
				truncate(j.CommandLine, 40),
				j.Status,
				progressText(j.Percent),
				j.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show job details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job domain.Job
		if err := apiCall(http.MethodGet, "/api/v1/jobs/"+args[0], nil, http.StatusOK, &job); err != nil {
			return err
		}

		fmt.Printf("Job Details:\n")
		fmt.Printf("  ID:       %s\n", job.ID)
		fmt.Printf("  Command:  %s\n", job.CommandLine)
		fmt.Printf("  Status:   %s\n", job.Status)
		fmt.Printf("  Progress: %s\n", progressText(job.Percent))
		if job.StatusText != "" {
			fmt.Printf("  Message:  %s\n", job.StatusText)
		}
		if job.WorkDir != "" {
			fmt.Printf("  Work dir: %s\n", job.WorkDir)
		}
		if job.IsTerminal() {
			fmt.Printf("  Exit:     %d\n", job.ExitCode)
		}
		if job.Error != "" {
			fmt.Printf("  Error:    %s\n", job.Error)
		}
		fmt.Printf("  Created:  %s\n", job.CreatedAt.Local().Format(time.DateTime))
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Stats  domain.JobStats `json:"stats"`
			Active int             `json:"active"`
		}
		if err := apiCall(http.MethodGet, "/api/v1/jobs/stats", nil, http.StatusOK, &resp); err != nil {
			return err
		}

		fmt.Println("Job Statistics:")
		fmt.Printf("  Total:     %d\n", resp.Stats.Total)
		fmt.Printf("  Queued:    %d\n", resp.Stats.Queued)
		fmt.Printf("  Running:   %d\n", resp.Stats.Running)
		fmt.Printf("  Completed: %d\n", resp.Stats.Completed)
		fmt.Printf("  Failed:    %d\n", resp.Stats.Failed)
		fmt.Printf("  Cancelled: %d\n", resp.Stats.Cancelled)
		fmt.Printf("  Active:    %d\n", resp.Active)
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodPost, "/api/v1/jobs/"+args[0]+"/cancel", nil, http.StatusAccepted, nil); err != nil {
			return err
		}
		fmt.Println("Cancel requested")
		return nil
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodPost, "/api/v1/jobs/"+args[0]+"/retry", nil, http.StatusAccepted, nil); err != nil {
			return err
		}
		fmt.Println("Job queued for retry")
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a finished job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall(http.MethodDelete, "/api/v1/jobs/"+args[0], nil, http.StatusNoContent, nil); err != nil {
			return err
		}
		fmt.Println("Job deleted")
		return nil
	},
}

func init() {
	jobsCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (default from config)")

	jobsSubmitCmd.Flags().StringP("shell", "s", "", "Command line to split with shell quoting rules")
	jobsSubmitCmd.Flags().StringP("workdir", "w", "", "Working directory on the server")
	jobsListCmd.Flags().StringP("status", "s", "", "Filter by status")

	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsRetryCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}

// apiCall sends body as JSON and decodes the response into out when the
// server answers with want
func apiCall(method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server not reachable at %s (start it with 'giffer serve -d'): %w", serverURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func progressText(percent int) string {
	if percent < 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", percent)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
